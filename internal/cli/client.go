package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// PublishResult — исход публикации на одной платформе.
type PublishResult struct {
	Platform string `json:"platform"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// PostResponse — пост из API.
type PostResponse struct {
	ID           string          `json:"id"`
	Caption      string          `json:"caption"`
	ImageURL     string          `json:"image_url,omitempty"`
	Platforms    []string        `json:"platforms"`
	ScheduledFor string          `json:"scheduled_for"`
	Status       string          `json:"status"`
	Results      []PublishResult `json:"results,omitempty"`
	PublishedAt  string          `json:"published_at,omitempty"`
	Attempt      int             `json:"attempt,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

// CheckResponse — результат внеочередного прохода: посты,
// найденные due на его начало.
type CheckResponse struct {
	Due []PostResponse `json:"due"`
}

// --- Request types ---

// CreatePostRequest — план публикации поста.
type CreatePostRequest struct {
	Caption      string    `json:"caption"`
	ImageURL     string    `json:"image_url,omitempty"`
	Platforms    []string  `json:"platforms"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// UpdatePostRequest — обновление поста.
type UpdatePostRequest struct {
	Caption      *string    `json:"caption,omitempty"`
	ImageURL     *string    `json:"image_url,omitempty"`
	Platforms    []string   `json:"platforms,omitempty"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для KreativPoster API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListPosts возвращает посты. Пустой status — scheduled (умолчание API).
func (c *Client) ListPosts(status string) ([]PostResponse, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}

	var posts []PostResponse
	err := c.list("/api/v1/posts", params, &posts)
	return posts, err
}

// CreatePost планирует публикацию поста.
func (c *Client) CreatePost(req CreatePostRequest) (*PostResponse, error) {
	var post PostResponse
	err := c.post("/api/v1/posts", req, &post)
	return &post, err
}

// GetPost возвращает пост по ID.
func (c *Client) GetPost(id string) (*PostResponse, error) {
	var post PostResponse
	err := c.get("/api/v1/posts/"+id, &post)
	return &post, err
}

// UpdatePost обновляет пост.
func (c *Client) UpdatePost(id string, req UpdatePostRequest) (*PostResponse, error) {
	var post PostResponse
	err := c.put("/api/v1/posts/"+id, req, &post)
	return &post, err
}

// DeletePost удаляет пост.
func (c *Client) DeletePost(id string) error {
	return c.delete("/api/v1/posts/" + id)
}

// CheckScheduled запрашивает внеочередной проход планировщика.
func (c *Client) CheckScheduled() (*CheckResponse, error) {
	var check CheckResponse
	err := c.post("/api/v1/scheduler/check", nil, &check)
	return &check, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if lr.Data == nil {
		return nil
	}
	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
