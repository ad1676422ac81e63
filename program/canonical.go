package program

import "encoding/hex"

// canonicalCoinbase is the 154-byte self-test coinbase (nonce2 at offset 97).
const canonicalCoinbase = "" +
	"01000000010000000000000000000000000000000000000000000000000000000000000000ffffffff" +
	"45030e4706fabe6d6d36ef89c976d4b87552f352894a26d307984b281d6e3d3aa2a8c821673350799501" +
	"00000000000000deadbeefcafebe0000000010e3032f736c7573682f0000000001ebb9ed970000000019" +
	"76a9147c154ed1dc59609e3d26abb2df2ea3d587cd8c4188ac00000000"

var canonicalMerkles = [...]string{
	"f2e1d3584d0224fb0b7b43c887413bb6ab3eaf5a799290c2569f20b5fe6b0b36",
	"36b3ffba99b89fe40ff32164f0a119860f09134ce2541eff38c6ab55cc58d2e4",
	"13b166dc926f3f37db30ec4d7b3738acf538b64d1f116cd2ee845bd215629978",
	"7224d031904a30e07f8d4148a72621edd3470ab738520eaf65ab3bcdf01ceb67",
	"8185e71892e5f6c505bae0db4545fe86689a11b80432145c721ff96ce526860a",
	"eaffbf998ffc3ca835146079a3dc6c973ae7b0b96469c7167b17124687dd103f",
	"995a04f156df6b0946d265236d59dfebaa60dad009c3225614f8bdd11c747e71",
	"f83fe9847c0b355efa590611d282d2330b28d23d184a456d05ff5f7baf6ada81",
	"13d75ef4da4b1a2ac942197d185e934aec7209bc952aa2ddc6774fdb1e652cd7",
	"856b96e8563eaa9e593aa7e029c2d401c566f78d8ef822dafe795f108a598a28",
	"ce7963a543e10018f23e3dfd52011755e5c84737a0d08651b88c895671f39649",
	"88738913a3c73aee996cc9f5760aec41f69799d49b09364c12b36a379c1842ef",
}

// CanonicalTemplate returns the hasher self-test job: a 154-byte coinbase with
// nonce2 at offset 97 and twelve merkle branches. The result is a fresh copy.
func CanonicalTemplate() *Template {
	cb, err := hex.DecodeString(canonicalCoinbase)
	if err != nil {
		panic("program: canonical coinbase: " + err.Error())
	}
	t := &Template{
		Coinbase:     cb,
		Nonce2Offset: 97,
		Merkles:      make([][32]byte, len(canonicalMerkles)),
	}
	for i, m := range canonicalMerkles {
		if _, err := hex.Decode(t.Merkles[i][:], []byte(m)); err != nil {
			panic("program: canonical merkle: " + err.Error())
		}
	}
	return t
}
