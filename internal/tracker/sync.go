package tracker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/thwithaphisek/student-behavior-api/internal/models"
	appErrors "github.com/thwithaphisek/student-behavior-api/pkg/errors"
)

// pendingStatusLabel is matched by substring against the status field's
// option names when a record is first created.
const pendingStatusLabel = "รออนุมัติ"

const maxProjectItems = 50

// Synchronizer drives the translation between behavior records and the
// tracker's issue + project-item pair. Creation is a strictly ordered
// three-step protocol with no rollback: an issue orphaned by a later step
// stays on the tracker and is surfaced, not cleaned up.
type Synchronizer struct {
	client     *Client
	registry   *Registry
	schoolName string
	logger     *zap.Logger
	now        func() time.Time
}

// NewSynchronizer constructs a synchronizer.
func NewSynchronizer(client *Client, registry *Registry, schoolName string, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		client:     client,
		registry:   registry,
		schoolName: schoolName,
		logger:     logger,
		now:        time.Now,
	}
}

const addItemMutation = `
mutation($projectId: ID!, $contentId: ID!) {
  addProjectV2ItemById(input: {
    projectId: $projectId
    contentId: $contentId
  }) {
    item {
      id
    }
  }
}`

// Create pushes a new record to the tracker: create issue, attach it to the
// project, then populate custom fields. Steps run in order because each
// step's output feeds the next; none are idempotent.
func (s *Synchronizer) Create(ctx context.Context, rec models.BehaviorRecord) (*models.BehaviorRecord, error) {
	now := s.now()
	encoded := EncodeIssue(rec, s.schoolName, now)

	doc, err := s.client.CreateIssue(ctx, encoded.Title, encoded.Body)
	if err != nil {
		return nil, err
	}

	itemID, err := s.addItem(ctx, doc.NodeID)
	if err != nil {
		// The issue now exists unattached; the error carries the issue
		// number for manual reconciliation.
		s.logger.Error("issue created but not attached to project",
			zap.Int("issue_number", doc.Number),
			zap.String("issue_node_id", doc.NodeID),
			zap.Error(err),
		)
		return nil, appErrors.Wrap(err, appErrors.ErrTrackerAPI.Code, appErrors.ErrTrackerAPI.Status,
			fmt.Sprintf("issue #%d created but attaching to project failed", doc.Number))
	}

	if err := s.populateFields(ctx, itemID, rec, now); err != nil {
		s.logger.Error("project item attached but field population failed",
			zap.Int("issue_number", doc.Number),
			zap.String("item_id", itemID),
			zap.Error(err),
		)
		return nil, appErrors.Wrap(err, appErrors.ErrTrackerAPI.Code, appErrors.ErrTrackerAPI.Status,
			fmt.Sprintf("issue #%d attached but populating fields failed", doc.Number))
	}

	created := rec
	created.TrackerItemID = itemID
	created.DocumentID = doc.NodeID
	created.DocumentNumber = doc.Number
	created.URL = doc.URL
	created.Status = models.StatusLabels[models.StatusPending]
	created.SubmittedDate = now.Format("2006-01-02")
	created.Title = encoded.Title
	created.Body = encoded.Body
	created.CreatedAt = now

	s.logger.Info("behavior record created",
		zap.Int("issue_number", doc.Number),
		zap.String("item_id", itemID),
		zap.String("student_id", rec.StudentID),
	)
	return &created, nil
}

func (s *Synchronizer) addItem(ctx context.Context, contentID string) (string, error) {
	var data struct {
		AddProjectV2ItemByID struct {
			Item struct {
				ID string `json:"id"`
			} `json:"item"`
		} `json:"addProjectV2ItemById"`
	}
	err := s.client.GraphQL(ctx, addItemMutation, map[string]interface{}{
		"projectId": s.client.ProjectID(),
		"contentId": contentID,
	}, &data)
	if err != nil {
		return "", err
	}
	return data.AddProjectV2ItemByID.Item.ID, nil
}

// populateFields resolves the registry once, then issues one independent
// update per configured field. A registry failure aborts the whole step; a
// failing update surfaces its error while leaving earlier updates applied.
func (s *Synchronizer) populateFields(ctx context.Context, itemID string, rec models.BehaviorRecord, now time.Time) error {
	fields, err := s.registry.Resolve(ctx)
	if err != nil {
		return err
	}

	if statusField, ok := findField(fields, fieldStatusEN, fieldStatusTH); ok {
		if option, ok := statusField.FindOption(pendingStatusLabel); ok {
			if err := s.updateSingleSelect(ctx, itemID, statusField, option.ID); err != nil {
				return err
			}
		}
	}

	if scoreField, ok := findField(fields, fieldScore); ok && rec.Score != 0 {
		if err := s.updateField(ctx, itemID, scoreField, fieldValue{number: rec.Score}); err != nil {
			return err
		}
	}

	if classField, ok := findField(fields, fieldClassroom); ok && rec.Classroom != "" {
		// Boards without an option for this classroom simply skip the field;
		// the classroom remains recoverable from the title.
		if option, ok := classField.FindOptionExact(rec.Classroom); ok {
			if err := s.updateSingleSelect(ctx, itemID, classField, option.ID); err != nil {
				return err
			}
		}
	}

	if teacherField, ok := findField(fields, fieldTeacher); ok && rec.TeacherName != "" {
		if err := s.updateField(ctx, itemID, teacherField, fieldValue{text: rec.TeacherName}); err != nil {
			return err
		}
	}

	if dateField, ok := findField(fields, fieldSubmitted); ok {
		if err := s.updateField(ctx, itemID, dateField, fieldValue{date: now.Format("2006-01-02")}); err != nil {
			return err
		}
	}

	return nil
}

// fieldValue carries the kind-specific payload for one field update. Which
// member is read depends entirely on the descriptor's kind.
type fieldValue struct {
	optionID string
	number   float64
	text     string
	date     string
}

const (
	updateSingleSelectMutation = `
mutation($projectId: ID!, $itemId: ID!, $fieldId: ID!, $optionId: String!) {
  updateProjectV2ItemFieldValue(input: {
    projectId: $projectId
    itemId: $itemId
    fieldId: $fieldId
    value: { singleSelectOptionId: $optionId }
  }) {
    projectV2Item {
      id
    }
  }
}`

	updateNumberMutation = `
mutation($projectId: ID!, $itemId: ID!, $fieldId: ID!, $number: Float!) {
  updateProjectV2ItemFieldValue(input: {
    projectId: $projectId
    itemId: $itemId
    fieldId: $fieldId
    value: { number: $number }
  }) {
    projectV2Item {
      id
    }
  }
}`

	updateTextMutation = `
mutation($projectId: ID!, $itemId: ID!, $fieldId: ID!, $text: String!) {
  updateProjectV2ItemFieldValue(input: {
    projectId: $projectId
    itemId: $itemId
    fieldId: $fieldId
    value: { text: $text }
  }) {
    projectV2Item {
      id
    }
  }
}`

	updateDateMutation = `
mutation($projectId: ID!, $itemId: ID!, $fieldId: ID!, $date: Date!) {
  updateProjectV2ItemFieldValue(input: {
    projectId: $projectId
    itemId: $itemId
    fieldId: $fieldId
    value: { date: $date }
  }) {
    projectV2Item {
      id
    }
  }
}`
)

// updateField dispatches on the declared field kind. The payload shape must
// match the kind exactly or the tracker rejects the mutation, so unknown
// kinds are an explicit error rather than a silent skip.
func (s *Synchronizer) updateField(ctx context.Context, itemID string, field models.FieldDescriptor, value fieldValue) error {
	switch field.Kind {
	case models.FieldSingleSelect:
		return s.updateSingleSelect(ctx, itemID, field, value.optionID)
	case models.FieldNumber:
		return s.mutateFieldValue(ctx, updateNumberMutation, itemID, field.ID, "number", value.number)
	case models.FieldText:
		return s.mutateFieldValue(ctx, updateTextMutation, itemID, field.ID, "text", value.text)
	case models.FieldDate:
		return s.mutateFieldValue(ctx, updateDateMutation, itemID, field.ID, "date", value.date)
	default:
		return appErrors.Clone(appErrors.ErrTrackerAPI,
			fmt.Sprintf("field %q has unsupported type %q", field.Name, field.Kind))
	}
}

func (s *Synchronizer) updateSingleSelect(ctx context.Context, itemID string, field models.FieldDescriptor, optionID string) error {
	return s.mutateFieldValue(ctx, updateSingleSelectMutation, itemID, field.ID, "optionId", optionID)
}

func (s *Synchronizer) mutateFieldValue(ctx context.Context, mutation, itemID, fieldID, valueKey string, value interface{}) error {
	return s.client.GraphQL(ctx, mutation, map[string]interface{}{
		"projectId": s.client.ProjectID(),
		"itemId":    itemID,
		"fieldId":   fieldID,
		valueKey:    value,
	}, nil)
}

const projectItemsQuery = `
query($projectId: ID!) {
  node(id: $projectId) {
    ... on ProjectV2 {
      items(first: 50) {
        nodes {
          id
          content {
            ... on Issue {
              id
              number
              title
              body
              state
              createdAt
              updatedAt
              url
            }
          }
          fieldValues(first: 10) {
            nodes {
              ... on ProjectV2ItemFieldTextValue {
                field {
                  ... on ProjectV2Field {
                    name
                  }
                }
                text
              }
              ... on ProjectV2ItemFieldNumberValue {
                field {
                  ... on ProjectV2Field {
                    name
                  }
                }
                number
              }
              ... on ProjectV2ItemFieldSingleSelectValue {
                field {
                  ... on ProjectV2SingleSelectField {
                    name
                  }
                }
                name
              }
              ... on ProjectV2ItemFieldDateValue {
                field {
                  ... on ProjectV2Field {
                    name
                  }
                }
                date
              }
            }
          }
        }
      }
    }
  }
}`

type projectItemsData struct {
	Node struct {
		Items struct {
			Nodes []projectItemNode `json:"nodes"`
		} `json:"items"`
	} `json:"node"`
}

type projectItemNode struct {
	ID      string `json:"id"`
	Content struct {
		ID        string    `json:"id"`
		Number    int       `json:"number"`
		Title     string    `json:"title"`
		Body      string    `json:"body"`
		State     string    `json:"state"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
		URL       string    `json:"url"`
	} `json:"content"`
	FieldValues struct {
		Nodes []fieldValueNode `json:"nodes"`
	} `json:"fieldValues"`
}

type fieldValueNode struct {
	Field struct {
		Name string `json:"name"`
	} `json:"field"`
	Text   *string  `json:"text"`
	Number *float64 `json:"number"`
	Name   *string  `json:"name"`
	Date   *string  `json:"date"`
}

// List fetches a snapshot of at most maxProjectItems records: one query for
// items with linked issues and field values, then a merge of field values
// and a best-effort decode of title and body per item. No pagination.
func (s *Synchronizer) List(ctx context.Context) ([]models.BehaviorRecord, error) {
	var data projectItemsData
	err := s.client.GraphQL(ctx, projectItemsQuery, map[string]interface{}{
		"projectId": s.client.ProjectID(),
	}, &data)
	if err != nil {
		return nil, err
	}

	nodes := data.Node.Items.Nodes
	// The query asks for the first page only; a tracker that hands back more
	// anyway is still capped here.
	if len(nodes) > maxProjectItems {
		nodes = nodes[:maxProjectItems]
	}

	records := make([]models.BehaviorRecord, 0, len(nodes))
	for _, item := range nodes {
		rec := models.BehaviorRecord{
			TrackerItemID:  item.ID,
			DocumentID:     item.Content.ID,
			DocumentNumber: item.Content.Number,
			Title:          item.Content.Title,
			Body:           item.Content.Body,
			URL:            item.Content.URL,
			CreatedAt:      item.Content.CreatedAt,
			UpdatedAt:      item.Content.UpdatedAt,
		}

		for _, value := range item.FieldValues.Nodes {
			mergeFieldValue(&rec, value)
		}

		DecodeTitle(rec.Title, &rec)
		DecodeBody(rec.Body, &rec)

		records = append(records, rec)
	}
	return records, nil
}

// mergeFieldValue folds one typed field value into the record, matching
// against the same fixed name set the registry expects.
func mergeFieldValue(rec *models.BehaviorRecord, value fieldValueNode) {
	switch value.Field.Name {
	case fieldStatusEN, fieldStatusTH:
		if value.Name != nil {
			rec.Status = *value.Name
		}
	case fieldScore:
		if value.Number != nil {
			rec.Score = *value.Number
		}
	case fieldClassroom:
		if value.Name != nil {
			rec.Classroom = *value.Name
		}
	case fieldTeacher:
		if value.Text != nil {
			rec.TeacherName = *value.Text
		}
	case fieldSubmitted:
		if value.Date != nil {
			rec.SubmittedDate = *value.Date
		}
	}
}

// UpdateStatus moves one record to the status option whose name contains
// the given label. Any option present on the board is accepted; the
// pending → approved/rejected convention is not enforced here.
func (s *Synchronizer) UpdateStatus(ctx context.Context, itemID, label string) error {
	statusField, err := s.registry.FindStatusField(ctx)
	if err != nil {
		return err
	}

	option, ok := statusField.FindOption(label)
	if !ok {
		return appErrors.Clone(appErrors.ErrStatusOptionNotFound,
			fmt.Sprintf("status option not found: %s", label))
	}

	return s.updateSingleSelect(ctx, itemID, statusField, option.ID)
}
