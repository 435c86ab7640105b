package tracker

import (
	"context"

	"github.com/thwithaphisek/student-behavior-api/internal/models"
	appErrors "github.com/thwithaphisek/student-behavior-api/pkg/errors"
)

// Expected field names on the project board. The status field name exists
// in an English and a Thai variant depending on who set the board up.
const (
	fieldStatusEN  = "Status"
	fieldStatusTH  = "สถานะ"
	fieldScore     = "คะแนน"
	fieldClassroom = "ห้องเรียน"
	fieldTeacher   = "ครูผู้ลงทะเบียน"
	fieldSubmitted = "วันที่ส่ง"
)

const maxProjectFields = 20

const projectFieldsQuery = `
query($projectId: ID!) {
  node(id: $projectId) {
    ... on ProjectV2 {
      id
      title
      fields(first: 20) {
        nodes {
          ... on ProjectV2Field {
            id
            name
            dataType
          }
          ... on ProjectV2SingleSelectField {
            id
            name
            dataType
            options {
              id
              name
            }
          }
        }
      }
    }
  }
}`

// Registry resolves the project's custom field definitions. The board's
// configuration can change out from under us, so descriptors are re-fetched
// on every call that needs them, never cached.
type Registry struct {
	client *Client
}

// NewRegistry constructs a registry over the given tracker client.
func NewRegistry(client *Client) *Registry {
	return &Registry{client: client}
}

type projectFieldsData struct {
	Node struct {
		Fields struct {
			Nodes []struct {
				ID       string `json:"id"`
				Name     string `json:"name"`
				DataType string `json:"dataType"`
				Options  []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"options"`
			} `json:"nodes"`
		} `json:"fields"`
	} `json:"node"`
}

// Resolve fetches up to maxProjectFields field definitions and maps them to
// descriptors. Fields of a type this system cannot write (iteration,
// milestone and the like) are left out.
func (r *Registry) Resolve(ctx context.Context) ([]models.FieldDescriptor, error) {
	var data projectFieldsData
	err := r.client.GraphQL(ctx, projectFieldsQuery, map[string]interface{}{
		"projectId": r.client.ProjectID(),
	}, &data)
	if err != nil {
		return nil, err
	}

	nodes := data.Node.Fields.Nodes
	if len(nodes) > maxProjectFields {
		nodes = nodes[:maxProjectFields]
	}

	fields := make([]models.FieldDescriptor, 0, len(nodes))
	for _, node := range nodes {
		if node.ID == "" {
			// Untyped fragment nodes come back empty.
			continue
		}
		if !models.KnownFieldKind(node.DataType) {
			continue
		}
		desc := models.FieldDescriptor{
			ID:   node.ID,
			Name: node.Name,
			Kind: models.FieldKind(node.DataType),
		}
		for _, opt := range node.Options {
			desc.Options = append(desc.Options, models.FieldOption{ID: opt.ID, Name: opt.Name})
		}
		fields = append(fields, desc)
	}
	return fields, nil
}

// FindStatusField locates the status field by either accepted name. The
// workflow cannot proceed without it, so absence is an error rather than a
// silently skipped field.
func (r *Registry) FindStatusField(ctx context.Context) (models.FieldDescriptor, error) {
	fields, err := r.Resolve(ctx)
	if err != nil {
		return models.FieldDescriptor{}, err
	}
	if field, ok := findField(fields, fieldStatusEN, fieldStatusTH); ok {
		return field, nil
	}
	return models.FieldDescriptor{}, appErrors.Clone(appErrors.ErrFieldNotFound, "status field not found in project")
}

func findField(fields []models.FieldDescriptor, names ...string) (models.FieldDescriptor, bool) {
	for _, field := range fields {
		for _, name := range names {
			if field.Name == name {
				return field, true
			}
		}
	}
	return models.FieldDescriptor{}, false
}
