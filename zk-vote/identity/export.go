package identity

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

const (
	exportPrefix = "id"
	exportVer    = 0x01
)

// Export encodes the private key for backup. The result is a secret.
func (id *Identity) Export() string {
	return exportPrefix + base58.CheckEncode(id.bytes(), exportVer)
}

func Import(s string) (*Identity, error) {
	if !strings.HasPrefix(s, exportPrefix) {
		return nil, fmt.Errorf("wrong prefix: expected(%s)", exportPrefix)
	}
	bz, ver, err := base58.CheckDecode(s[len(exportPrefix):])
	if err != nil {
		return nil, err
	}
	if ver != exportVer {
		return nil, fmt.Errorf("wrong version: expected(%d), got(%d)", exportVer, ver)
	}
	return FromBytes(bz)
}
