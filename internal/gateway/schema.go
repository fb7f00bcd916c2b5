package gateway

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"resume-wizard/resume/model"
)

//go:embed parsed_resume.schema.json
var parsedResumeSchema []byte

var parsedSchema = mustSchema(parsedResumeSchema)

func mustSchema(raw []byte) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("compile parsed resume schema: %v", err))
	}
	return s
}

// wireParsed mirrors model.ParsedResume but tolerates numeric years from the parser.
type wireParsed struct {
	Summary        *string `json:"summary"`
	WorkExperience []struct {
		Position         string   `json:"position"`
		Company          string   `json:"company"`
		Duration         string   `json:"duration"`
		Responsibilities []string `json:"responsibilities"`
	} `json:"workExperience"`
	Education []struct {
		Degree      string   `json:"degree"`
		Institution string   `json:"institution"`
		Year        flexYear `json:"year"`
	} `json:"education"`
	Skills   []string `json:"skills"`
	Projects []struct {
		Name         string   `json:"name"`
		Year         flexYear `json:"year"`
		Description  string   `json:"description"`
		Technologies []string `json:"technologies"`
	} `json:"projects"`
}

type flexYear string

func (y *flexYear) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*y = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*y = flexYear(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("year: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*y = flexYear(strconv.FormatInt(i, 10))
		return nil
	}
	*y = flexYear(n.String())
	return nil
}

// DecodeParsedResume validates raw parser output against the schema and converts it.
func DecodeParsedResume(raw []byte) (model.ParsedResume, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return model.ParsedResume{}, errors.New("empty parser output")
	}
	if !json.Valid(raw) {
		return model.ParsedResume{}, errors.New("parser output is not valid JSON")
	}
	result, err := parsedSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return model.ParsedResume{}, fmt.Errorf("validate parser output: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return model.ParsedResume{}, fmt.Errorf("parser output failed schema validation: %s", strings.Join(msgs, "; "))
	}

	var wire wireParsed
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&wire); err != nil {
		return model.ParsedResume{}, fmt.Errorf("decode parser output: %w", err)
	}

	out := model.ParsedResume{Skills: wire.Skills}
	if wire.Summary != nil {
		out.Summary = *wire.Summary
	}
	for _, w := range wire.WorkExperience {
		out.WorkExperience = append(out.WorkExperience, model.WorkExperience{
			Position:         w.Position,
			Company:          w.Company,
			Duration:         w.Duration,
			Responsibilities: w.Responsibilities,
		})
	}
	for _, e := range wire.Education {
		out.Education = append(out.Education, model.Education{
			Degree:      e.Degree,
			Institution: e.Institution,
			Year:        string(e.Year),
		})
	}
	for _, p := range wire.Projects {
		out.Projects = append(out.Projects, model.Project{
			Name:         p.Name,
			Year:         string(p.Year),
			Description:  p.Description,
			Technologies: p.Technologies,
		})
	}
	return out.Normalize(), nil
}
