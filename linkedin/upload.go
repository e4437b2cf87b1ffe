package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

type initializeUploadRequest struct {
	InitializeUploadRequest struct {
		Owner string `json:"owner"`
	} `json:"initializeUploadRequest"`
}

type initializeUploadResponse struct {
	Value struct {
		UploadURL string `json:"uploadUrl"`
		Image     string `json:"image"`
	} `json:"value"`
}

// UploadImage registers an image upload for the author and PUTs the file bytes.
// It returns the image URN to attach to a post.
func (c *Client) UploadImage(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image at '%s' with %w", path, err)
	}

	token := c.Token(ctx)
	uploadURL, imageURN, err := c.initializeUpload(ctx, token)
	if err != nil {
		return "", err
	}

	resp, err := c.send(ctx, c.upload, uploadURL, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/octet-stream")
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		body, _ := io.ReadAll(resp.Body)
		return "", uploadStatusError(resp.StatusCode, body)
	}
	return imageURN, nil
}

func (c *Client) initializeUpload(ctx context.Context, token string) (uploadURL, imageURN string, err error) {
	var payload initializeUploadRequest
	payload.InitializeUploadRequest.Owner = c.cfg.AuthorURN

	target := c.cfg.APIBase + "/rest/images?action=initializeUpload"
	resp, err := c.postJSON(ctx, target, token, payload)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !isSuccess(resp.StatusCode) {
		return "", "", statusError("initialize upload", resp.StatusCode, body)
	}

	var out initializeUploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", "", fmt.Errorf("failed to decode initialize upload response with %w", err)
	}
	if out.Value.UploadURL == "" || out.Value.Image == "" {
		return "", "", fmt.Errorf("initialize upload response is missing uploadUrl or image: %s", truncateBody(body))
	}
	return out.Value.UploadURL, out.Value.Image, nil
}
