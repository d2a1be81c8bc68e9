package feishu

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"time"
)

// Drive implements the RemoteDrive capability contract (§4.1) against the
// real Feishu/Lark Drive HTTP API.
type Drive struct {
	client *Client
	logger *slog.Logger
}

// NewDrive builds a Drive backed by client.
func NewDrive(client *Client, logger *slog.Logger) *Drive {
	return &Drive{client: client, logger: logger}
}

type rootMetaResponse struct {
	Token string `json:"token"`
}

// ResolveRoot resolves the Drive "my files" root when no explicit root was
// configured, via GET /drive/explorer/v2/root_folder/meta.
func (d *Drive) ResolveRoot(ctx context.Context) (string, error) {
	var out rootMetaResponse
	if err := d.client.do(ctx, http.MethodGet, "/drive/explorer/v2/root_folder/meta", nil, &out); err != nil {
		return "", fmt.Errorf("resolving root folder: %w", err)
	}
	return out.Token, nil
}

type listChildrenResponse struct {
	Files     []fileItem `json:"files"`
	HasMore   bool       `json:"has_more"`
	NextToken string     `json:"next_page_token"`
}

type fileItem struct {
	Token        string `json:"token"`
	Name         string `json:"name"`
	Type         string `json:"type"` // "file" or "folder" (among others)
	ParentToken  string `json:"parent_token"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"` // epoch seconds, as a string
}

// ListChildren paginates GET /drive/v1/files by page_token until has_more is
// false, returning every child in API order (never deduplicated here — same
// -name-sibling collapsing is the reconciliation engine's P1 job, not this
// adapter's).
func (d *Drive) ListChildren(ctx context.Context, folderID string) ([]Item, error) {
	var items []Item
	pageToken := ""

	for {
		path := fmt.Sprintf("/drive/v1/files?folder_token=%s&page_size=200", folderID)
		if pageToken != "" {
			path += "&page_token=" + pageToken
		}

		var out listChildrenResponse
		if err := d.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
			return nil, fmt.Errorf("listing children of %s: %w", folderID, err)
		}

		for _, f := range out.Files {
			kind := KindFile
			if f.Type == "folder" {
				kind = KindFolder
			}
			items = append(items, Item{
				RemoteID:     f.Token,
				Kind:         kind,
				Name:         f.Name,
				Size:         f.Size,
				ModifiedTime: parseEpochSeconds(f.ModifiedTime),
				ParentID:     f.ParentToken,
			})
		}

		if !out.HasMore || out.NextToken == "" {
			break
		}
		pageToken = out.NextToken
	}

	return items, nil
}

func parseEpochSeconds(s string) time.Time {
	var sec int64
	if _, err := fmt.Sscanf(s, "%d", &sec); err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

type createFolderRequest struct {
	Name        string `json:"name"`
	FolderToken string `json:"folder_token"`
}

type createFolderResponse struct {
	Token string `json:"token"`
}

// CreateFolder creates a new folder via POST /drive/v1/files/create_folder.
func (d *Drive) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	var out createFolderResponse
	req := createFolderRequest{Name: name, FolderToken: parentID}
	if err := d.client.do(ctx, http.MethodPost, "/drive/v1/files/create_folder", req, &out); err != nil {
		return "", fmt.Errorf("creating folder %q under %s: %w", name, parentID, err)
	}
	return out.Token, nil
}

type uploadResponse struct {
	FileToken string `json:"file_token"`
}

// Upload performs a full-file upload via POST /drive/v1/files/upload_all
// (multipart/form-data), matching feishu_client.py's upload_file.
func (d *Drive) Upload(ctx context.Context, parentID, name, path string) (UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return UploadResult{}, fmt.Errorf("opening %s for upload: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return UploadResult{}, fmt.Errorf("stat %s: %w", path, err)
	}

	body, contentType, err := buildUploadMultipart(name, parentID, info.Size(), f)
	if err != nil {
		return UploadResult{}, fmt.Errorf("building upload body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.client.baseURL+"/drive/v1/files/upload_all", body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("building upload request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	tok, err := d.client.tokens.Token(ctx)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+tok.Value)

	resp, err := d.client.http.Do(httpReq)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: upload request failed: %v", ErrRemoteTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("reading upload response: %w", err)
	}
	if apiErr := classify(resp.StatusCode, 0, string(raw)); apiErr != nil {
		return UploadResult{}, apiErr
	}

	var env struct {
		Code int             `json:"code"`
		Msg  string          `json:"msg"`
		Data uploadResponse  `json:"data"`
	}
	if err := decodeJSON(raw, &env); err != nil {
		return UploadResult{}, fmt.Errorf("decoding upload response: %w", err)
	}
	if env.Code != 0 {
		return UploadResult{}, &APIError{Kind: KindRemotePermanent, Code: env.Code, Message: env.Msg, Err: ErrRemotePermanent}
	}

	return UploadResult{RemoteID: env.Data.FileToken, Revision: ""}, nil
}

func buildUploadMultipart(name, parentID string, size int64, content io.Reader) (io.Reader, string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		defer mw.Close()

		_ = mw.WriteField("file_name", name)
		_ = mw.WriteField("parent_type", "explorer")
		_ = mw.WriteField("parent_node", parentID)
		_ = mw.WriteField("size", fmt.Sprintf("%d", size))

		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, content); err != nil {
			pw.CloseWithError(err)
			return
		}
	}()

	return pr, mw.FormDataContentType(), nil
}

// Download streams the remote file to destPath via GET
// /drive/v1/files/{token}/download, writing to a sibling temp file first —
// the caller (the engine) is responsible for the final atomic rename into
// place, per §4.5's download-atomicity rule.
func (d *Drive) Download(ctx context.Context, remoteID, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.client.baseURL+"/drive/v1/files/"+remoteID+"/download", nil)
	if err != nil {
		return fmt.Errorf("building download request: %w", err)
	}

	tok, err := d.client.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)

	resp, err := d.client.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: download request failed: %v", ErrRemoteTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		if apiErr := classify(resp.StatusCode, 0, string(raw)); apiErr != nil {
			return apiErr
		}
		return fmt.Errorf("%w: unexpected status %d", ErrRemotePermanent, resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating temp download file %s: %w", destPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing downloaded content: %w", err)
	}

	return nil
}

type renameRequest struct {
	Name string `json:"name"`
}

// Rename renames a remote item via PATCH /drive/v1/files/{token}.
func (d *Drive) Rename(ctx context.Context, remoteID, newName string) error {
	req := renameRequest{Name: newName}
	if err := d.client.do(ctx, http.MethodPatch, "/drive/v1/files/"+remoteID, req, nil); err != nil {
		return fmt.Errorf("renaming %s to %q: %w", remoteID, newName, err)
	}
	return nil
}

type moveRequest struct {
	Type        string `json:"type"`
	FolderToken string `json:"folder_token"`
}

// Move relocates a remote item via POST /drive/v1/files/{token}/move.
func (d *Drive) Move(ctx context.Context, remoteID string, kind ItemKind, newParentID string) error {
	req := moveRequest{Type: string(kind), FolderToken: newParentID}
	if err := d.client.do(ctx, http.MethodPost, "/drive/v1/files/"+remoteID+"/move", req, nil); err != nil {
		return fmt.Errorf("moving %s to %s: %w", remoteID, newParentID, err)
	}
	return nil
}

// HardDelete permanently removes a remote item via DELETE
// /drive/v1/files/{token}?type={kind}.
func (d *Drive) HardDelete(ctx context.Context, remoteID string, kind ItemKind) error {
	path := fmt.Sprintf("/drive/v1/files/%s?type=%s", remoteID, kind)
	if err := d.client.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("deleting %s: %w", remoteID, err)
	}
	return nil
}
