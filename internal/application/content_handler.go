package application

import (
	"context"
)

// ToolGetContent is the tool name of the content retrieval tool.
const ToolGetContent = "getContent"

// GetContentInput is the input of getContent.
type GetContentInput struct {
	ContentID string `json:"contentId" jsonschema:"required,minLength=1,description=Id of the Content record"`
	Category  string `json:"category,omitempty" jsonschema:"pattern=^[A-Za-z0-9_-]+$,description=Directory prefix used when saving (default content)"`
	ConfigID  string `json:"configId,omitempty" jsonschema:"pattern=^[A-Za-z0-9_.-]+$,description=Data manager configuration id; when set the text is also saved locally"`
}

// GetContentOutput is the output of getContent.
type GetContentOutput struct {
	ContentID          string `json:"contentId" jsonschema:"required"`
	DataResourceID     string `json:"dataResourceId" jsonschema:"required"`
	DataResourceTypeID string `json:"dataResourceTypeId,omitempty"`
	TextData           string `json:"textData" jsonschema:"required"`
	MimeType           string `json:"mimeType" jsonschema:"required"`
	ObjectInfo         string `json:"objectInfo,omitempty" jsonschema:"description=Backend file path of file-backed resources"`
	SavedPath          string `json:"savedPath,omitempty" jsonschema:"description=Local path the text was saved to"`
}

// ContentHandler implements ToolHandler for content retrieval.
type ContentHandler struct {
	*toolSet
	resolver *ContentResolver
}

// NewContentHandler creates a new ContentHandler instance.
func NewContentHandler(resolver *ContentResolver, deps ToolDeps) (*ContentHandler, error) {
	h := &ContentHandler{resolver: resolver}

	var l toolList
	l.add(NewTool(ToolSpec{
		Name:  ToolGetContent,
		Title: "Get content",
		Description: "Resolve a Content id to its text: follows Content to DataResource, reads inline text " +
			"or downloads the file, and falls back to the raw download endpoint.",
	}, deps, h.getContent))

	if l.err != nil {
		return nil, l.err
	}
	h.toolSet = newToolSet("content", l.tools)
	return h, nil
}

func (h *ContentHandler) getContent(ctx context.Context, call Call, in GetContentInput) (GetContentOutput, error) {
	res, err := h.resolver.Resolve(ctx, call.Credential, ContentRequest{
		ContentID: in.ContentID,
		Category:  in.Category,
		ConfigID:  in.ConfigID,
	})
	if err != nil {
		return GetContentOutput{}, err
	}
	return GetContentOutput{
		ContentID:          res.ContentID,
		DataResourceID:     res.DataResourceID,
		DataResourceTypeID: res.DataResourceTypeID,
		TextData:           res.TextData,
		MimeType:           res.MimeType,
		ObjectInfo:         res.ObjectInfo,
		SavedPath:          res.SavedPath,
	}, nil
}
