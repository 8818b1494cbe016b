package a2a

import "github.com/google/uuid"

/*
Artifact is the durable output of a task, distinct from the transient
status narration carried on TaskStatus messages.
*/
type Artifact struct {
	ArtifactID  string         `json:"artifactId"`
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Parts       []Part         `json:"parts"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewTextArtifact(name string, text string) Artifact {
	return Artifact{
		ArtifactID: uuid.NewString(),
		Name:       &name,
		Parts: []Part{
			{Type: PartTypeText, Text: text},
		},
	}
}

func NewFileArtifact(name string, mimeType string, data string) Artifact {
	return Artifact{
		ArtifactID: uuid.NewString(),
		Name:       &name,
		Parts: []Part{
			{
				Type: PartTypeFile,
				File: &FilePart{
					MimeType: &mimeType,
					Data:     data,
				},
			},
		},
	}
}

/*
Text concatenates the text content of the artifact's text parts.
*/
func (artifact *Artifact) Text() string {
	var out string

	for _, part := range artifact.Parts {
		if part.Type == PartTypeText {
			out += part.Text
		}
	}

	return out
}
