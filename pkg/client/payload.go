package client

import (
	"github.com/diogo/perplexity-web-api-go/pkg/models"
	"github.com/google/uuid"
)

const (
	apiVersion    = "2.18"
	requestSource = "default"
)

// buildAskPayload assembles the perplexity_ask body. uploaded holds the
// attachment URLs of files uploaded for this request; they precede the
// attachments inherited from the follow-up context.
func buildAskPayload(req models.SearchRequest, uploaded []string) (models.AskPayload, error) {
	token, err := models.ResolveModel(req.Mode, req.Model)
	if err != nil {
		return models.AskPayload{}, err
	}

	attachments := make([]string, 0, len(uploaded))
	attachments = append(attachments, uploaded...)

	var lastBackendUUID string
	if req.FollowUp != nil {
		attachments = append(attachments, req.FollowUp.Attachments...)
		lastBackendUUID = req.FollowUp.BackendUUID
	}

	srcs := req.Sources
	if len(srcs) == 0 {
		srcs = []models.Source{models.SourceWeb}
	}
	sources := make([]string, len(srcs))
	for i, s := range srcs {
		sources[i] = string(s)
	}

	language := req.Language
	if language == "" {
		language = models.DefaultLanguage
	}

	return models.AskPayload{
		Query: req.Query,
		Params: models.AskParams{
			Attachments:         attachments,
			FrontendContextUUID: uuid.NewString(),
			FrontendUUID:        uuid.NewString(),
			IsIncognito:         req.Incognito,
			Language:            language,
			LastBackendUUID:     lastBackendUUID,
			Mode:                req.Mode.WireMode(),
			ModelPreference:     token,
			Source:              requestSource,
			Sources:             sources,
			Version:             apiVersion,
		},
	}, nil
}
