package zenodo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Wire representation of a deposit as returned by the deposit API
type depositResponse struct {
	ID        int                 `json:"id"`
	State     string              `json:"state"`
	Submitted bool                `json:"submitted"`
	DOI       string              `json:"doi"`
	Metadata  depositMetadataJSON `json:"metadata"`
	Links     depositLinks        `json:"links"`
	Files     []depositFileJSON   `json:"files"`
}

type depositLinks struct {
	Bucket string `json:"bucket"`
	HTML   string `json:"html"`
	Self   string `json:"self"`
}

type depositFileJSON struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
	Checksum string `json:"checksum"`
}

type depositMetadataJSON struct {
	Title              string              `json:"title,omitempty"`
	UploadType         string              `json:"upload_type,omitempty"`
	Description        string              `json:"description,omitempty"`
	Creators           []Creator           `json:"creators,omitempty"`
	AccessRight        string              `json:"access_right,omitempty"`
	License            string              `json:"license,omitempty"`
	Keywords           []string            `json:"keywords,omitempty"`
	Communities        []communityJSON     `json:"communities,omitempty"`
	RelatedIdentifiers []relatedIdentifier `json:"related_identifiers,omitempty"`
}

type communityJSON struct {
	Identifier string `json:"identifier"`
}

type relatedIdentifier struct {
	Identifier string `json:"identifier"`
	Relation   string `json:"relation"`
	Scheme     string `json:"scheme"`
}

func (d *depositResponse) toDeposit() *Deposit {
	dep := &Deposit{
		ID:        d.ID,
		State:     d.State,
		Submitted: d.Submitted,
		DOI:       d.DOI,
		Title:     d.Metadata.Title,
		BucketURL: d.Links.Bucket,
		HTMLLink:  d.Links.HTML,
	}
	for _, f := range d.Files {
		dep.Files = append(dep.Files, &DepositFile{
			ID:       f.ID,
			Filename: f.Filename,
			Size:     f.Filesize,
			Checksum: f.Checksum,
		})
	}
	return dep
}

// Validate checks the metadata before any request is made
func (m *DepositMetadata) Validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if strings.TrimSpace(m.Description) == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if len(m.Creators) == 0 {
		return &ValidationError{Field: "creators", Reason: "at least one creator is required"}
	}
	for _, creator := range m.Creators {
		if strings.TrimSpace(creator.Name) == "" {
			return &ValidationError{Field: "creators", Reason: "creator name must not be empty"}
		}
	}
	return nil
}

// wire maps the metadata to its API form, filling in defaults
func (m *DepositMetadata) wire() depositMetadataJSON {
	out := depositMetadataJSON{
		Title:       m.Title,
		Description: m.Description,
		Creators:    m.Creators,
		Keywords:    m.Keywords,
		UploadType:  m.UploadType,
		AccessRight: m.AccessRight,
		License:     m.License,
	}
	if out.UploadType == "" {
		out.UploadType = "dataset"
	}
	if out.AccessRight == "" {
		out.AccessRight = "open"
	}
	if out.License == "" {
		out.License = "cc-by-4.0"
	}
	for _, community := range m.Communities {
		out.Communities = append(out.Communities, communityJSON{Identifier: community})
	}
	for _, doi := range m.RelatedDOIs {
		out.RelatedIdentifiers = append(out.RelatedIdentifiers, relatedIdentifier{
			Identifier: doi,
			Relation:   "isReferencedBy",
			Scheme:     "doi",
		})
	}
	return out
}

func (c *Client) depositURL(depositID int) string {
	return fmt.Sprintf("%s/deposit/depositions/%d", c.apiBase, depositID)
}

// CreateDeposit creates a new draft deposit carrying the given
// metadata. The deposit API wants two requests: POST an empty deposit
// to get an ID assigned, then PUT the metadata against that ID.
func (c *Client) CreateDeposit(ctx context.Context, meta *DepositMetadata) (*Deposit, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, "POST", c.apiBase+"/deposit/depositions", strings.NewReader("{}"))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var created depositResponse
	if err := readJSON(resp.Body, &created); err != nil {
		return nil, fmt.Errorf("failed to parse deposit response: %w", err)
	}

	payload, err := json.Marshal(map[string]depositMetadataJSON{"metadata": meta.wire()})
	if err != nil {
		return nil, err
	}

	req, err = c.newRequest(ctx, "PUT", c.depositURL(created.ID), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err = c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var updated depositResponse
	if err := readJSON(resp.Body, &updated); err != nil {
		return nil, fmt.Errorf("failed to parse deposit response: %w", err)
	}
	return updated.toDeposit(), nil
}

// GetDeposit fetches the current state of a deposit
func (c *Client) GetDeposit(ctx context.Context, depositID int) (*Deposit, error) {
	req, err := c.newRequest(ctx, "GET", c.depositURL(depositID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{Resource: "deposit", ID: strconv.Itoa(depositID)}
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var deposit depositResponse
	if err := readJSON(resp.Body, &deposit); err != nil {
		return nil, fmt.Errorf("failed to parse deposit response: %w", err)
	}
	return deposit.toDeposit(), nil
}

// ListDeposits returns the caller's deposits, drafts included. Useful
// for finding a partially uploaded draft to resume by ID.
func (c *Client) ListDeposits(ctx context.Context) ([]*Deposit, error) {
	req, err := c.newRequest(ctx, "GET", c.apiBase+"/deposit/depositions", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var deposits []depositResponse
	if err := readJSON(resp.Body, &deposits); err != nil {
		return nil, fmt.Errorf("failed to parse deposit list: %w", err)
	}

	result := make([]*Deposit, len(deposits))
	for i := range deposits {
		result[i] = deposits[i].toDeposit()
	}
	return result, nil
}

// UploadFile attaches a single local file to a draft deposit
func (c *Client) UploadFile(ctx context.Context, depositID int, path string, progressFn ProgressFunc) error {
	_, err := c.UploadFiles(ctx, depositID, []string{path}, progressFn)
	return err
}

// UploadFiles attaches the given local files to a draft deposit, one at
// a time. Every path is checked before the first transfer starts, so a
// missing file fails the call without touching the deposit. A failed
// transfer does not stop the remaining files; the report records which
// files made it so the caller can re-submit the rest. Transfers are
// never retried.
func (c *Client) UploadFiles(ctx context.Context, depositID int, paths []string, progressFn ProgressFunc) (*UploadReport, error) {
	if len(paths) == 0 {
		return nil, &ValidationError{Field: "files", Reason: "no files to upload"}
	}

	sizes := make([]int64, len(paths))
	for i, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return nil, &NotFoundError{Resource: "file", ID: path}
		}
		sizes[i] = info.Size()
	}

	deposit, err := c.GetDeposit(ctx, depositID)
	if err != nil {
		return nil, err
	}
	if deposit.BucketURL == "" {
		return nil, &ServiceError{Message: fmt.Sprintf("deposit %d has no bucket link", depositID)}
	}

	report := &UploadReport{}
	for i, path := range paths {
		if err := c.uploadToBucket(ctx, deposit.BucketURL, path, sizes[i], progressFn); err != nil {
			c.debugf("upload failed for %s: %v", path, err)
			report.Failed = append(report.Failed, UploadFailure{Path: path, Err: err})
			continue
		}
		report.Uploaded = append(report.Uploaded, path)
	}

	if len(report.Failed) > 0 {
		return report, fmt.Errorf("%d of %d files failed to upload: %w",
			len(report.Failed), len(paths), report.Failed[0].Err)
	}
	return report, nil
}

// uploadToBucket streams one file into the deposit's bucket
func (c *Client) uploadToBucket(ctx context.Context, bucketURL, path string, size int64, progressFn ProgressFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return &NotFoundError{Resource: "file", ID: path}
	}
	defer f.Close()

	name := filepath.Base(path)
	var body io.Reader = f
	if progressFn != nil {
		body = &progressReader{
			reader: f,
			total:  size,
			progressFn: func(transferred, total int64) {
				progressFn(name, transferred, total)
			},
		}
	}

	req, err := c.newRequest(ctx, "PUT", strings.TrimRight(bucketURL, "/")+"/"+url.PathEscape(name), body)
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.doTransfer(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// Publish finalizes a draft deposit. Publishing is irreversible on the
// service side, so a deposit with no attached files is rejected locally
// before any publish request is sent.
func (c *Client) Publish(ctx context.Context, depositID int) (*Deposit, error) {
	deposit, err := c.GetDeposit(ctx, depositID)
	if err != nil {
		return nil, err
	}
	if len(deposit.Files) == 0 {
		return nil, &StateError{DepositID: depositID, Reason: "cannot publish a deposit with no files"}
	}
	if deposit.Submitted {
		return nil, &StateError{DepositID: depositID, Reason: "deposit is already published"}
	}

	req, err := c.newRequest(ctx, "POST", c.depositURL(depositID)+"/actions/publish", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// The service answers 400 when the deposit is incomplete
	if resp.StatusCode == http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StateError{
			DepositID: depositID,
			Reason:    "deposit is not ready to publish: " + strings.TrimSpace(string(body)),
		}
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var published depositResponse
	if err := readJSON(resp.Body, &published); err != nil {
		return nil, fmt.Errorf("failed to parse deposit response: %w", err)
	}
	return published.toDeposit(), nil
}

// DeleteDeposit discards an unpublished draft. Published deposits
// cannot be deleted.
func (c *Client) DeleteDeposit(ctx context.Context, depositID int) error {
	req, err := c.newRequest(ctx, "DELETE", c.depositURL(depositID), nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &NotFoundError{Resource: "deposit", ID: strconv.Itoa(depositID)}
	}
	return checkStatus(resp)
}
