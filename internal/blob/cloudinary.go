package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryOptions configures the Cloudinary store.
type CloudinaryOptions struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string // defaults to "devisauto"
}

// Cloudinary implements Store over the Cloudinary upload API.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinary validates credentials and builds the store.
func NewCloudinary(opts CloudinaryOptions) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(opts.CloudName, opts.APIKey, opts.APISecret)
	if err != nil {
		return nil, fmt.Errorf("blob: cloudinary init: %w", err)
	}
	folder := opts.Folder
	if folder == "" {
		folder = "devisauto"
	}
	return &Cloudinary{cld: cld, folder: folder}, nil
}

// Upload stores the blob and returns its HTTPS URL.
func (c *Cloudinary) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	resp, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID: name,
		Folder:   c.folder,
	})
	if err != nil {
		return "", fmt.Errorf("blob: upload %s: %w", name, err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("blob: upload %s: %s", name, resp.Error.Message)
	}
	return resp.SecureURL, nil
}
