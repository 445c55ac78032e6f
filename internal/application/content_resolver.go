package application

import (
	"context"

	"erp-mcp-server/internal/domain"
)

const defaultMimeType = "text/plain"

// ContentSaver persists retrieved content. infrastructure.ContentStore
// implements it.
type ContentSaver interface {
	Save(ctx context.Context, category, configID, contentID, mimeType string, data []byte) (string, error)
}

// ContentRequest identifies the content to resolve. ConfigID enables
// persistence; Category names the target directory prefix.
type ContentRequest struct {
	ContentID string
	Category  string
	ConfigID  string
}

// ResolvedContent is the normalized result of the resolution chain.
type ResolvedContent struct {
	ContentID          string
	DataResourceID     string
	DataResourceTypeID string
	TextData           string
	MimeType           string
	ObjectInfo         string
	SavedPath          string
}

// ContentResolver turns a content id into text by following Content,
// DataResource and the typed payload, with a raw download as fallback.
type ContentResolver struct {
	client domain.BackendClient
	saver  ContentSaver
	logger domain.Logger
}

// NewContentResolver creates a resolver. A nil saver disables persistence.
func NewContentResolver(client domain.BackendClient, saver ContentSaver, logger domain.Logger) *ContentResolver {
	if logger == nil {
		logger = domain.NopLogger{}
	}
	return &ContentResolver{client: client, saver: saver, logger: logger}
}

// Resolve runs the chain with cred on every backend call. Backend and
// lookup failures stop the chain; download and persistence failures do not.
func (r *ContentResolver) Resolve(ctx context.Context, cred domain.Credential, req ContentRequest) (*ResolvedContent, error) {
	contents, err := find(ctx, r.client, cred, domain.QueryRequest{
		EntityName: domain.EntityContent,
		Filters:    map[string]interface{}{"contentId": req.ContentID},
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(contents) == 0 {
		return nil, &domain.NotFoundError{Entity: domain.EntityContent, Field: "contentId", Value: req.ContentID}
	}
	content := contents[0]

	dataResourceID := content.String("dataResourceId")
	if dataResourceID == "" {
		return nil, &domain.MissingLinkError{Entity: domain.EntityContent, ID: req.ContentID, Field: "dataResourceId"}
	}

	resources, err := find(ctx, r.client, cred, domain.QueryRequest{
		EntityName: domain.EntityDataResource,
		Filters:    map[string]interface{}{"dataResourceId": dataResourceID},
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(resources) == 0 {
		return nil, &domain.NotFoundError{Entity: domain.EntityDataResource, Field: "dataResourceId", Value: dataResourceID}
	}
	resource := resources[0]

	out := &ResolvedContent{
		ContentID:          req.ContentID,
		DataResourceID:     dataResourceID,
		DataResourceTypeID: resource.String("dataResourceTypeId"),
		MimeType:           resource.String("mimeTypeId"),
	}
	if out.MimeType == "" {
		out.MimeType = content.String("mimeTypeId")
	}

	var downloadedType string
	switch {
	case domain.IsInlineText(out.DataResourceTypeID):
		texts, err := find(ctx, r.client, cred, domain.QueryRequest{
			EntityName: domain.EntityElectronicText,
			Filters:    map[string]interface{}{"dataResourceId": dataResourceID},
			Limit:      1,
		})
		if err != nil {
			return nil, err
		}
		if len(texts) > 0 {
			out.TextData = texts[0].String("textData")
		}

	case domain.IsFileBacked(out.DataResourceTypeID):
		out.ObjectInfo = resource.String("objectInfo")
		file, err := r.client.Download(ctx, cred, domain.DownloadRequest{Kind: domain.DownloadByDataResourceID, ID: dataResourceID})
		if err != nil {
			r.logger.Warn(ctx, "typed download failed", "content_id", req.ContentID,
				"data_resource_id", dataResourceID, "error", err.Error())
		} else {
			out.TextData = string(file.Data)
			downloadedType = file.ContentType
		}
	}

	if out.TextData == "" {
		file, err := r.client.Download(ctx, cred, domain.DownloadRequest{Kind: domain.DownloadByContentID, ID: req.ContentID})
		if err != nil {
			r.logger.Warn(ctx, "raw download failed", "content_id", req.ContentID, "error", err.Error())
			return nil, &domain.NoRetrievableContentError{ContentID: req.ContentID, DataResourceTypeID: out.DataResourceTypeID, Cause: err}
		}
		out.TextData = string(file.Data)
		downloadedType = file.ContentType
	}

	if out.TextData == "" {
		return nil, &domain.NoRetrievableContentError{ContentID: req.ContentID, DataResourceTypeID: out.DataResourceTypeID}
	}

	if out.MimeType == "" {
		out.MimeType = downloadedType
	}
	if out.MimeType == "" {
		out.MimeType = defaultMimeType
	}

	if req.ConfigID != "" && r.saver != nil {
		path, err := r.saver.Save(ctx, req.Category, req.ConfigID, req.ContentID, out.MimeType, []byte(out.TextData))
		if err != nil {
			r.logger.Warn(ctx, "content not saved", "content_id", req.ContentID, "config_id", req.ConfigID, "error", err.Error())
		} else {
			out.SavedPath = path
		}
	}

	return out, nil
}
