package linkedin

import (
	"context"
	"io"
)

type postDistribution struct {
	FeedDistribution               string   `json:"feedDistribution"`
	TargetEntities                 []string `json:"targetEntities"`
	ThirdPartyDistributionChannels []string `json:"thirdPartyDistributionChannels"`
}

type postMedia struct {
	ID string `json:"id"`
}

type postContent struct {
	Media postMedia `json:"media"`
}

type postRequest struct {
	Author                    string           `json:"author"`
	Commentary                string           `json:"commentary"`
	Visibility                Visibility       `json:"visibility"`
	Distribution              postDistribution `json:"distribution"`
	Content                   postContent      `json:"content"`
	LifecycleState            string           `json:"lifecycleState"`
	IsReshareDisabledByAuthor bool             `json:"isReshareDisabledByAuthor"`
}

// CreatePost publishes an image post. The post id comes from the x-restli-id
// response header and is empty when LinkedIn omits it.
func (c *Client) CreatePost(ctx context.Context, mediaID, caption string, visibility Visibility) (string, error) {
	if visibility == "" {
		visibility = c.cfg.Visibility
	}
	payload := postRequest{
		Author:     c.cfg.AuthorURN,
		Commentary: caption,
		Visibility: visibility,
		Distribution: postDistribution{
			FeedDistribution:               "MAIN_FEED",
			TargetEntities:                 []string{},
			ThirdPartyDistributionChannels: []string{},
		},
		Content:                   postContent{Media: postMedia{ID: mediaID}},
		LifecycleState:            "PUBLISHED",
		IsReshareDisabledByAuthor: false,
	}

	token := c.Token(ctx)
	resp, err := c.postJSON(ctx, c.cfg.APIBase+"/rest/posts", token, payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		body, _ := io.ReadAll(resp.Body)
		return "", statusError("create post", resp.StatusCode, body)
	}
	return resp.Header.Get("x-restli-id"), nil
}
