package shaper

import (
	"go.uber.org/zap"
)

// DefaultIDKey is the field treated as the resource identifier.
const DefaultIDKey = "id"

// Request selects one of the three shaping modes. The modes are mutually
// exclusive; ReturnOnlyIDs takes precedence, then Compact, then Fields.
type Request struct {
	ReturnOnlyIDs bool
	Compact       bool
	Fields        []string
}

// Shaper applies field selection, compaction, and truncation policy to raw
// resource objects before they leave the gateway boundary.
type Shaper struct {
	idKey     string
	textLimit int
	logger    *zap.Logger
}

// New creates a Shaper that truncates string fields longer than textLimit
// runes in compact mode.
func New(textLimit int, logger *zap.Logger) *Shaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if textLimit <= 0 {
		textLimit = 160
	}
	return &Shaper{
		idKey:     DefaultIDKey,
		textLimit: textLimit,
		logger:    logger,
	}
}

// WithIDKey overrides the identifier field name used by ids-only mode.
func (s *Shaper) WithIDKey(key string) *Shaper {
	s.idKey = key
	return s
}

// Shape returns exactly one projection of the resource according to req.
// A request with no mode set returns the object unchanged.
func (s *Shaper) Shape(resource map[string]interface{}, req Request) map[string]interface{} {
	if resource == nil {
		return nil
	}
	switch {
	case req.ReturnOnlyIDs:
		return s.idsOnly(resource)
	case req.Compact:
		return s.compact(resource)
	case len(req.Fields) > 0:
		return s.project(resource, req.Fields)
	default:
		return resource
	}
}

// ShapeList shapes every element of a result page.
func (s *Shaper) ShapeList(resources []map[string]interface{}, req Request) []map[string]interface{} {
	if resources == nil {
		return nil
	}
	shaped := make([]map[string]interface{}, 0, len(resources))
	for _, r := range resources {
		shaped = append(shaped, s.Shape(r, req))
	}
	return shaped
}

func (s *Shaper) idsOnly(resource map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, 1)
	if id, ok := resource[s.idKey]; ok {
		out[s.idKey] = id
	} else {
		s.logger.Debug("Resource has no identifier field", zap.String("idKey", s.idKey))
	}
	return out
}

func (s *Shaper) compact(resource map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(resource))
	for k, v := range resource {
		str, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		runes := []rune(str)
		if len(runes) <= s.textLimit {
			out[k] = str
			continue
		}
		out[k] = string(runes[:s.textLimit])
		out[k+"Truncated"] = true
		out[k+"OriginalLength"] = len(runes)
	}
	return out
}

// project copies only the requested fields. Unknown field names are
// ignored, not errors.
func (s *Shaper) project(resource map[string]interface{}, fields []string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if v, ok := resource[f]; ok {
			out[f] = v
		}
	}
	return out
}
