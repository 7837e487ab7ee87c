// Package battleid derives deterministic, content-addressed identifiers
// from the platform's opaque match IDs. The derived UUID is the dedup
// and idempotency key for the whole pipeline.
package battleid

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Itoktsnhc/stat.itok/internal/models"
)

// Namespace constants, one per record type. Identifiers of different
// types can never collide even with identical name inputs.
var (
	battleNamespace = uuid.MustParse("b3a2dbf5-2c09-4792-b78c-00b548b70aeb")
	salmonNamespace = uuid.MustParse("f1911910-605e-11ed-a622-7085c2057a9d")
)

// coopPrefix marks cooperative-run identifiers; everything else is a
// versus battle.
const coopPrefix = "CoopHistoryDetail"

// nameLength is the trailing portion of the decoded identifier used as
// the UUID name input: timestamp plus the platform's own UUID.
const nameLength = 52

// Classify decodes a raw identifier and reports its record type.
func Classify(rawID string) (models.MatchType, error) {
	decoded, err := decode(rawID)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(decoded, coopPrefix) {
		return models.MatchTypeSalmon, nil
	}
	return models.MatchTypeBattle, nil
}

// Compute derives the content-addressed UUID and record type for a raw
// identifier. Deterministic: the same input always yields the same
// UUID.
func Compute(rawID string) (string, models.MatchType, error) {
	decoded, err := decode(rawID)
	if err != nil {
		return "", "", err
	}
	if len(decoded) < nameLength {
		return "", "", fmt.Errorf("decoded id too short: %d chars", len(decoded))
	}

	name := decoded[len(decoded)-nameLength:]

	matchType := models.MatchTypeBattle
	namespace := battleNamespace
	if strings.HasPrefix(decoded, coopPrefix) {
		matchType = models.MatchTypeSalmon
		namespace = salmonNamespace
	}

	id := uuid.NewSHA1(namespace, []byte(name))
	return id.String(), matchType, nil
}

// ParseCommonID decodes an opaque sub-identifier (stage, weapon, boss,
// special) and returns the trailing code after the last '-'.
func ParseCommonID(rawID string) (string, error) {
	decoded, err := decode(rawID)
	if err != nil {
		return "", err
	}
	idx := strings.LastIndex(decoded, "-")
	if idx < 0 || idx == len(decoded)-1 {
		return decoded, nil
	}
	return decoded[idx+1:], nil
}

func decode(rawID string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(rawID)
	if err != nil {
		return "", fmt.Errorf("failed to base64-decode id: %w", err)
	}
	return string(raw), nil
}
