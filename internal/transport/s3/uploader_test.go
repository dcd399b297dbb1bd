package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// --- Mocks ---

type mockPutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (m *mockPutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.input = params
	if params.Body != nil {
		m.body, _ = io.ReadAll(params.Body)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &s3.PutObjectOutput{}, nil
}

// --- Tests ---

func TestPut_WritesObject(t *testing.T) {
	api := &mockPutter{}
	u := NewUploader(api, Config{
		Bucket:    "imitune-feedback",
		Region:    "eu-west-1",
		KeyPrefix: "feedback/",
		ACL:       "public-read",
	})

	url, err := u.Put(context.Background(), "feedback-meta-abc.json", "application/json", []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if aws.ToString(api.input.Bucket) != "imitune-feedback" || aws.ToString(api.input.Key) != "feedback/feedback-meta-abc.json" {
		t.Errorf("unexpected target %s/%s", aws.ToString(api.input.Bucket), aws.ToString(api.input.Key))
	}
	if aws.ToString(api.input.ContentType) != "application/json" {
		t.Errorf("unexpected content type %s", aws.ToString(api.input.ContentType))
	}
	if aws.ToInt64(api.input.ContentLength) != 7 || string(api.body) != `{"a":1}` {
		t.Errorf("unexpected body %q", api.body)
	}
	if api.input.ACL != types.ObjectCannedACLPublicRead {
		t.Errorf("expected public-read ACL, got %q", api.input.ACL)
	}
	if url != "https://imitune-feedback.s3.eu-west-1.amazonaws.com/feedback/feedback-meta-abc.json" {
		t.Errorf("unexpected url %s", url)
	}
}

func TestPut_NoACLByDefault(t *testing.T) {
	api := &mockPutter{}
	if _, err := NewUploader(api, Config{Bucket: "b"}).Put(context.Background(), "x", "audio/webm", nil); err != nil {
		t.Fatal(err)
	}
	if api.input.ACL != "" {
		t.Errorf("expected bucket default ACL, got %q", api.input.ACL)
	}
}

func TestPut_Error(t *testing.T) {
	api := &mockPutter{err: errors.New("AccessDenied")}
	_, err := NewUploader(api, Config{Bucket: "b"}).Put(context.Background(), "x.webm", "audio/webm", []byte("x"))
	if err == nil || !strings.Contains(err.Error(), "s3://b/x.webm") {
		t.Fatalf("expected wrapped put error, got %v", err)
	}
}

func TestObjectURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"public base", Config{Bucket: "b", PublicBaseURL: "https://cdn.thatsoundslike.me/"}, "https://cdn.thatsoundslike.me/k.json"},
		{"custom endpoint", Config{Bucket: "b", Endpoint: "http://localhost:4566"}, "http://localhost:4566/b/k.json"},
		{"virtual hosted", Config{Bucket: "b", Region: "us-east-1"}, "https://b.s3.us-east-1.amazonaws.com/k.json"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewUploader(nil, tc.cfg).ObjectURL("k.json"); got != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestNewClient_StaticCredentialsAndEndpoint(t *testing.T) {
	c, err := NewClient(context.Background(), Config{
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	opts := c.Options()
	if !opts.UsePathStyle || aws.ToString(opts.BaseEndpoint) != "http://localhost:4566" {
		t.Errorf("expected path-style custom endpoint, got %+v", opts.BaseEndpoint)
	}
	creds, err := opts.Credentials.Retrieve(context.Background())
	if err != nil || creds.AccessKeyID != "test" {
		t.Errorf("expected static credentials, got %+v (%v)", creds, err)
	}
}
