package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// LegacySHA256 replica el esquema heredado: hex(sha256(salt + password)),
// un solo round, salt global de configuración. Es criptográficamente débil
// y se conserva porque los hashes ya emitidos en despliegues existentes
// deben seguir verificando. Despliegues nuevos: usar argon2id.
type LegacySHA256 struct {
	Salt string
}

// Hash es determinista: mismo salt + password ⇒ mismo digest. Nunca falla.
func (h *LegacySHA256) Hash(plain string) (string, error) {
	sum := sha256.Sum256([]byte(h.Salt + plain))
	return hex.EncodeToString(sum[:]), nil
}

func (h *LegacySHA256) Verify(plain, digest string) bool {
	computed, _ := h.Hash(plain)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
