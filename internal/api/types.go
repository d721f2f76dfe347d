package api

import "time"

// ErrorResp is the body of every non-2xx response.
type ErrorResp struct {
	Detail string `json:"detail"`
}

// --- POST /v1/features ---

type TextReq struct {
	Text string `json:"text"`
}

// --- POST /v1/images/validate (multipart "file") ---

type ImageFileInfo struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Size   int64  `json:"size"`
}

type ImageValidateResp struct {
	IsValid  bool           `json:"is_valid"`
	Message  string         `json:"message"`
	FileInfo *ImageFileInfo `json:"file_info,omitempty"`
}

// --- GET /v1/categories ---

type CategoriesResp struct {
	Categories []string `json:"categories"`
}

// --- Admin: clients ---

type CreateClientReq struct {
	Name string `json:"name"`
	Mode string `json:"mode,omitempty"`
}

type CreateClientResp struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	APIKey       string    `json:"api_key"`
	APIKeyPrefix string    `json:"api_key_prefix"`
	Mode         string    `json:"mode"`
	CreatedAt    time.Time `json:"created_at"`
}
