package ocr

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// ComponentSpec is one parsed `<Type>Inst`/`<Type>Type` section of the INI
// topology file (spec §6): an instance or type declaration naming a
// component kind, an id (or a range expanded to one spec per id), and a
// symbolic name used by other sections to reference it.
type ComponentSpec struct {
	Section string
	Type    string
	ID      int
	Name    string
	Fields  map[string]string
}

// TopologyConfig is the fully-parsed INI configuration, with range/CSV id
// expansion already applied: one entry per (section, id), keyed as
// "<section>[<id>]".
type TopologyConfig struct {
	Components map[string]*ComponentSpec
	order      []string
}

// knownComponentTypes is the compiled-in list CLI/config validation checks
// declared types against (spec §6: "type strings must match the compiled-in
// list").
var knownComponentTypes = map[string]bool{
	"MEMPLATFORM": true, "MEMTARGET": true, "ALLOCATOR": true,
	"COMMPLATFORM": true, "COMMAPI": true,
	"COMPPLATFORM": true, "COMPTARGET": true,
	"WORKPILE": true, "WORKER": true,
	"SCHEDULER": true, "SCHEDULEROBJECT": true, "SCHEDULERHEURISTIC": true,
	"POLICYDOMAIN": true,
	"TASKFACTORY":  true, "EVENTFACTORY": true, "DATABLOCKFACTORY": true, "TASKTEMPLATEFACTORY": true,
}

// ParseTopologyConfig loads and validates the INI file at path, matching
// the driver's `-ocr:cfg` contract (spec §6). Section names follow the
// `<Type>Inst`/`<Type>Type` convention; `id` may be a single integer, a
// range (`1-4`), or a CSV list, each expanding to its own ComponentSpec
// sharing the section's other fields.
func ParseTopologyConfig(path string) (*TopologyConfig, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, NewStatusError(StatusInvalidArgument, "failed to load topology config", err)
	}

	cfg := &TopologyConfig{Components: make(map[string]*ComponentSpec)}

	for _, sec := range f.Sections() {
		name := sec.Name()
		if name == ini.DefaultSection {
			continue
		}
		typ := sec.Key("type").String()
		if typ == "" {
			return nil, NewStatusError(StatusInvalidArgument, fmt.Sprintf("section %q missing required field %q", name, "type"), nil)
		}
		if !knownComponentTypes[strings.ToUpper(typ)] {
			return nil, NewStatusError(StatusInvalidArgument, fmt.Sprintf("section %q: unknown component type %q", name, typ), nil)
		}
		symName := sec.Key("name").String()
		if symName == "" {
			return nil, NewStatusError(StatusInvalidArgument, fmt.Sprintf("section %q missing required field %q", name, "name"), nil)
		}

		ids, err := parseIDField(sec.Key("id").String())
		if err != nil {
			return nil, NewStatusError(StatusInvalidArgument, fmt.Sprintf("section %q: %v", name, err), nil)
		}

		fields := make(map[string]string)
		for _, k := range sec.Keys() {
			fields[k.Name()] = k.String()
		}

		for _, id := range ids {
			key := fmt.Sprintf("%s[%d]", name, id)
			cfg.Components[key] = &ComponentSpec{Section: name, Type: typ, ID: id, Name: symName, Fields: fields}
			cfg.order = append(cfg.order, key)
		}
	}
	return cfg, nil
}

// parseIDField parses a single integer ("3"), a range ("1-4"), or a CSV
// list ("1,3,5") into the list of ids it denotes (spec §6: "parses ranges
// ... CSV lists, and integer keys").
func parseIDField(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []int{0}, nil
	}
	if strings.Contains(raw, ",") {
		var ids []int
		for _, part := range strings.Split(raw, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("invalid id %q: %w", part, err)
			}
			ids = append(ids, n)
		}
		return ids, nil
	}
	if lo, hi, ok := strings.Cut(raw, "-"); ok {
		loN, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid range start %q: %w", lo, err)
		}
		hiN, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("invalid range end %q: %w", hi, err)
		}
		if hiN < loN {
			return nil, fmt.Errorf("invalid range %q: end before start", raw)
		}
		ids := make([]int, 0, hiN-loN+1)
		for i := loN; i <= hiN; i++ {
			ids = append(ids, i)
		}
		return ids, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", raw, err)
	}
	return []int{n}, nil
}
