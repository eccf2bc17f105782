package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/Dosada05/courtside/models"
)

// ResultArchiver stores completed match results as public JSON documents.
type ResultArchiver struct {
	uploader ObjectUploader
}

func NewResultArchiver(uploader ObjectUploader) *ResultArchiver {
	return &ResultArchiver{uploader: uploader}
}

func ResultKey(matchToken string) string {
	return "matches/" + url.PathEscape(matchToken) + ".json"
}

// Archive uploads the result and returns its public URL. Uploading the same
// token twice overwrites the document.
func (a *ResultArchiver) Archive(ctx context.Context, result models.MatchResult) (string, error) {
	body, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode result for %s: %w", result.MatchToken, err)
	}
	out, err := a.uploader.Upload(ctx, ResultKey(result.MatchToken), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	return out.Location, nil
}

func (a *ResultArchiver) URLFor(matchToken string) string {
	return a.uploader.GetPublicURL(ResultKey(matchToken))
}
