package events

import (
	"strings"

	"pettrace/internal/domain/reports"
)

// KnownTypes son los tipos de evento que emite el registro.
var KnownTypes = []reports.EventType{
	reports.EventPetPosted,
	reports.EventFoundClaimed,
	reports.EventOwnerConfirmed,
	reports.EventBountyClaimed,
	reports.EventReportCancelled,
}

func IsKnownType(t reports.EventType) bool {
	for _, k := range KnownTypes {
		if k == t {
			return true
		}
	}
	return false
}

// ParseTypes acepta "pet_posted,bounty_claimed". Devuelve false si algún tipo no existe.
func ParseTypes(raw string) ([]reports.EventType, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	out := make([]reports.EventType, 0)
	for _, p := range strings.Split(raw, ",") {
		t := reports.EventType(strings.ToLower(strings.TrimSpace(p)))
		if t == "" {
			continue
		}
		if !IsKnownType(t) {
			return nil, false
		}
		out = append(out, t)
	}
	return out, true
}
