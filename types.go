package zenodo

// Creator is one author of a deposit, name in "Last, First" form
type Creator struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	ORCID       string `json:"orcid,omitempty"`
}

// DepositMetadata holds the descriptive metadata attached to a deposit
// on creation. License, UploadType and AccessRight default to
// "cc-by-4.0", "dataset" and "open" when left empty.
type DepositMetadata struct {
	Title       string
	Description string
	Creators    []Creator
	Keywords    []string
	Communities []string
	RelatedDOIs []string
	License     string
	UploadType  string
	AccessRight string
}

// Deposit represents one deposit record on the service
type Deposit struct {
	ID        int
	State     string // "unsubmitted" while draft, "done" once published
	Submitted bool
	DOI       string
	Title     string
	BucketURL string
	HTMLLink  string
	Files     []*DepositFile
}

// DepositFile represents a file attached to a deposit
type DepositFile struct {
	ID       string
	Filename string
	Size     int64
	Checksum string
}

// Record represents a published record and its files
type Record struct {
	ID    string
	DOI   string
	Title string
	Files []*RecordFile
}

// RecordFile represents one downloadable file of a published record
type RecordFile struct {
	Key        string
	Size       int64
	Checksum   string
	ContentURL string
}

// UploadReport records which files of a multi-file upload made it and
// which did not, so the caller can re-submit the remainder
type UploadReport struct {
	Uploaded []string
	Failed   []UploadFailure
}

// UploadFailure is one failed transfer within an upload
type UploadFailure struct {
	Path string
	Err  error
}

// ProgressFunc receives transfer progress for the named file
type ProgressFunc func(filename string, transferred, total int64)
