package Storage

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var (
	client *s3.Client
	bucket string
)

func Setup() {
	ctx := context.Background()
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Printf("unable to load AWS SDK config, document uploads disabled: %v", err)
		return
	}

	client = s3.New(s3.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
		UsePathStyle: true,
	})
	bucket = os.Getenv("DOCUMENTS_BUCKET")
}

func awsString(s string) *string { return &s }

// UploadTherapistDocument stores a certificate or photo under a timestamped
// key and returns the key recorded on the therapist profile.
func UploadTherapistDocument(ctx context.Context, therapistID uint, filename string, data []byte, contentType string) (string, error) {
	if client == nil || bucket == "" {
		return "", fmt.Errorf("document storage not configured")
	}

	key := fmt.Sprintf("therapists/%d/%s_%s", therapistID, time.Now().Format("20060102_150405"), filename)
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: awsString(contentType),
		ACL:         types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return "", err
	}
	return key, nil
}
