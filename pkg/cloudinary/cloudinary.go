package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

const (
	defaultFolder = "algogenius/submissions"
	fallbackName  = "submission"
	archiveTag    = "algogenius-submission"
)

// Config holds the account credentials and the root folder for archived files.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Enabled is true once every credential is set.
func (c Config) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// Archive keeps raw copies of submitted source files, one folder per assignment.
// Re-submitting the same file name for an assignment replaces the earlier copy.
type Archive struct {
	client *cloudinary.Cloudinary
	root   string
	logger zerolog.Logger
}

// New validates cfg and builds the upload client.
func New(cfg Config, logger zerolog.Logger) (*Archive, error) {
	if !cfg.Enabled() {
		return nil, errors.New("cloudinary: cloud name, api key and api secret are required")
	}

	client, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}

	root := strings.Trim(cfg.Folder, "/")
	if root == "" {
		root = defaultFolder
	}

	return &Archive{
		client: client,
		root:   root,
		logger: logger.With().Str("component", "submission_archive").Logger(),
	}, nil
}

// Store uploads reader as a raw asset and returns its HTTPS URL.
func (a *Archive) Store(ctx context.Context, assignmentID, name string, reader io.Reader) (string, error) {
	folder := a.folderFor(assignmentID)
	result, err := a.client.Upload.Upload(ctx, reader, uploader.UploadParams{
		Folder:         folder,
		PublicID:       PublicID(name),
		ResourceType:   "raw",
		Overwrite:      api.Bool(true),
		UniqueFilename: api.Bool(false),
		Tags:           api.CldAPIArray{archiveTag},
		Context:        api.CldAPIMap{"assignment_id": assignmentID},
	})
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", name, err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("archive %s: %s", name, result.Error.Message)
	}

	a.logger.Debug().
		Str("assignment_id", assignmentID).
		Str("public_id", result.PublicID).
		Int("bytes", result.Bytes).
		Msg("submission archived")
	return result.SecureURL, nil
}

func (a *Archive) folderFor(assignmentID string) string {
	return path.Join(a.root, slug(assignmentID, "unassigned"))
}

// PublicID derives an asset id from a file name. Raw assets keep their
// lowercased extension so downloads carry a usable name.
func PublicID(name string) string {
	ext := strings.ToLower(path.Ext(name))
	return slug(strings.TrimSuffix(name, path.Ext(name)), fallbackName) + ext
}

// slug keeps ASCII letters and digits and collapses everything else into single dashes.
func slug(value, fallback string) string {
	var b strings.Builder
	dash := false
	for _, r := range value {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if out == "" {
		return fallback
	}
	return out
}
