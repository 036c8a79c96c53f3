package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// VisionProvider extracts text with the Google Cloud Vision document
// text-detection API. Page buffers are submitted inline as PDF content, so
// no intermediate storage upload is needed.
type VisionProvider struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionProvider creates a Vision-backed provider. Credentials come from
// GOOGLE_CREDENTIALS (inline JSON), GOOGLE_APPLICATION_CREDENTIALS (file
// path) or application default credentials, in that order.
func NewVisionProvider(ctx context.Context) (*VisionProvider, error) {
	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &VisionProvider{client: client}, nil
}

// Name implements Provider.
func (p *VisionProvider) Name() string { return "google-vision" }

// ExtractText implements Provider.
func (p *VisionProvider) ExtractText(ctx context.Context, page []byte) (string, error) {
	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  page,
					MimeType: "application/pdf",
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := p.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vision API call failed: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", fmt.Errorf("vision API: no response")
	}
	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return "", fmt.Errorf("vision API: %s", fileResp.Error.Message)
	}

	var text strings.Builder
	for _, pageResp := range fileResp.Responses {
		if pageResp.Error != nil {
			return "", fmt.Errorf("vision API: %s", pageResp.Error.Message)
		}
		if pageResp.FullTextAnnotation != nil {
			text.WriteString(pageResp.FullTextAnnotation.Text)
		}
	}

	extracted := text.String()
	if strings.TrimSpace(extracted) == "" {
		return "", ErrEmptyResult
	}
	return extracted, nil
}

// Close closes the underlying Vision client.
func (p *VisionProvider) Close() error {
	return p.client.Close()
}
