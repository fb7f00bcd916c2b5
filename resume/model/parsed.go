package model

// ParsedResume is the structured form of a résumé produced by the parse stage.
type ParsedResume struct {
	Summary        string           `json:"summary"`
	WorkExperience []WorkExperience `json:"workExperience"`
	Education      []Education      `json:"education"`
	Skills         []string         `json:"skills"`
	Projects       []Project        `json:"projects"`
}

type WorkExperience struct {
	Position         string   `json:"position"`
	Company          string   `json:"company"`
	Duration         string   `json:"duration"`
	Responsibilities []string `json:"responsibilities"`
}

type Education struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Year        string `json:"year"`
}

type Project struct {
	Name         string   `json:"name"`
	Year         string   `json:"year,omitempty"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
}

// Normalize replaces nil slices with empty ones so the JSON form always carries arrays.
func (p ParsedResume) Normalize() ParsedResume {
	out := p.Clone()
	if out.WorkExperience == nil {
		out.WorkExperience = []WorkExperience{}
	}
	if out.Education == nil {
		out.Education = []Education{}
	}
	if out.Skills == nil {
		out.Skills = []string{}
	}
	if out.Projects == nil {
		out.Projects = []Project{}
	}
	for i := range out.WorkExperience {
		if out.WorkExperience[i].Responsibilities == nil {
			out.WorkExperience[i].Responsibilities = []string{}
		}
	}
	for i := range out.Projects {
		if out.Projects[i].Technologies == nil {
			out.Projects[i].Technologies = []string{}
		}
	}
	return out
}

// Clone returns a deep copy.
func (p ParsedResume) Clone() ParsedResume {
	out := ParsedResume{Summary: p.Summary}
	if p.WorkExperience != nil {
		out.WorkExperience = make([]WorkExperience, len(p.WorkExperience))
		for i, w := range p.WorkExperience {
			w.Responsibilities = cloneStrings(w.Responsibilities)
			out.WorkExperience[i] = w
		}
	}
	if p.Education != nil {
		out.Education = append([]Education{}, p.Education...)
	}
	out.Skills = cloneStrings(p.Skills)
	if p.Projects != nil {
		out.Projects = make([]Project, len(p.Projects))
		for i, pr := range p.Projects {
			pr.Technologies = cloneStrings(pr.Technologies)
			out.Projects[i] = pr
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}
