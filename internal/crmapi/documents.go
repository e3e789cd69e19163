package crmapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"firmament/internal/model"
)

// UploadDocuments posts files as multipart field "files".
func (c *Client) UploadDocuments(ctx context.Context, appointmentID int64, files []model.Attachment) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.Name))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		if _, err := part.Write(f.Data); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/documents/upload/%d", c.baseURL, appointmentID), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Documents lists the documents of an appointment.
func (c *Client) Documents(ctx context.Context, appointmentID int64) ([]model.Document, error) {
	var out []model.Document
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/documents/appointment/%d", appointmentID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Document fetches document metadata.
func (c *Client) Document(ctx context.Context, id int64) (*model.Document, error) {
	var out model.Document
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/documents/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadDocument streams a document to w and returns the bytes written.
// The response body is closed before returning.
func (c *Client) DownloadDocument(ctx context.Context, id int64, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/documents/download/%d", c.baseURL, id), http.NoBody)
	if err != nil {
		return 0, err
	}
	resp, err := c.send(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download document %d: %w", id, err)
	}
	return n, nil
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/documents/%d", id), nil, nil)
}
