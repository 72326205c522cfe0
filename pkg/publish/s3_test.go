package publish

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/headsync/internal/errors"
	"github.com/vango-dev/headsync/pkg/headtag"
	"github.com/vango-dev/headsync/pkg/reconcile"
	"github.com/vango-dev/headsync/pkg/registry"
	"github.com/vango-dev/headsync/pkg/surface"
)

type fakeS3 struct {
	puts []*s3.PutObjectInput
	body []string
	err  error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.body = append(f.body, string(data))
	return &s3.PutObjectOutput{}, nil
}

func linkSet(href string) reconcile.Set {
	r := registry.New()
	r.Register(registry.Tags{headtag.TypeLink: {
		headtag.Link(headtag.A{"rel": headtag.S("canonical"), "href": headtag.S(href)}),
	}})
	return reconcile.Reconcile(headtag.DefaultTable(), r.Snapshot())
}

func newPublisher(t *testing.T, client PutObjectAPI) *S3 {
	t.Helper()
	p, err := NewS3(client, headtag.DefaultTable(), S3Config{
		Bucket:       "site",
		Key:          "head.html",
		CacheControl: "max-age=60",
	}, nil)
	if err != nil {
		t.Fatalf("NewS3() error: %v", err)
	}
	return p
}

func TestPublishUploadsOnChange(t *testing.T) {
	fake := &fakeS3{}
	p := newPublisher(t, fake)
	ctx := context.Background()

	c, err := p.Apply(ctx, linkSet("/x"))
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if c != (surface.Changes{Added: 1}) {
		t.Errorf("first Changes = %+v", c)
	}
	if len(fake.puts) != 1 {
		t.Fatalf("puts = %d, want 1", len(fake.puts))
	}
	in := fake.puts[0]
	if aws.ToString(in.Bucket) != "site" || aws.ToString(in.Key) != "head.html" {
		t.Errorf("target = %s/%s", aws.ToString(in.Bucket), aws.ToString(in.Key))
	}
	if aws.ToString(in.CacheControl) != "max-age=60" {
		t.Errorf("CacheControl = %q", aws.ToString(in.CacheControl))
	}
	if in.Metadata["entries"] != "1" {
		t.Errorf("entries metadata = %q", in.Metadata["entries"])
	}
	if !strings.Contains(fake.body[0], `href="/x"`) {
		t.Errorf("body = %q", fake.body[0])
	}

	c, _ = p.Apply(ctx, linkSet("/x"))
	if c != (surface.Changes{Kept: 1}) || len(fake.puts) != 1 {
		t.Errorf("unchanged markup should not upload: %+v, puts = %d", c, len(fake.puts))
	}

	c, _ = p.Apply(ctx, linkSet("/y"))
	if c != (surface.Changes{Added: 1, Removed: 1}) || len(fake.puts) != 2 {
		t.Errorf("changed markup should replace the object: %+v, puts = %d", c, len(fake.puts))
	}
}

func TestPublishError(t *testing.T) {
	denied := stderrors.New("access denied")
	fake := &fakeS3{err: denied}
	p := newPublisher(t, fake)

	_, err := p.Apply(context.Background(), linkSet("/x"))
	if !errors.HasCode(err, "E301") || !stderrors.Is(err, denied) {
		t.Fatalf("Apply() error = %v, want E301 wrapping the upload error", err)
	}

	// A failed upload must be retried by the next Apply.
	fake.err = nil
	c, err := p.Apply(context.Background(), linkSet("/x"))
	if err != nil || c != (surface.Changes{Added: 1}) {
		t.Errorf("retry = %+v, %v", c, err)
	}
}

func TestNewS3Validation(t *testing.T) {
	if _, err := NewS3(&fakeS3{}, headtag.DefaultTable(), S3Config{Key: "k"}, nil); !errors.HasCode(err, "E102") {
		t.Errorf("missing bucket error = %v", err)
	}
	if _, err := NewS3(&fakeS3{}, headtag.DefaultTable(), S3Config{Bucket: "b"}, nil); !errors.HasCode(err, "E102") {
		t.Errorf("missing key error = %v", err)
	}
}
