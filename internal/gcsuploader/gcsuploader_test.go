package gcsuploader

import "testing"

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://bucket/statements/abc/file.csv", "bucket", "statements/abc/file.csv", false},
		{"gs://bucket/file.pdf", "bucket", "file.pdf", false},
		{"gs://bucket", "", "", true},
		{"gs://bucket/", "", "", true},
		{"s3://bucket/file.pdf", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGCSURI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseGCSURI() = %q, %q, want %q, %q", bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://bucket/folder/statement.pdf", "statement.pdf"},
		{"gs://bucket/statement.csv", "statement.csv"},
		{"gs://bucket", "bucket"},
	}

	for _, tt := range tests {
		if got := ExtractFilenameFromGCSURI(tt.uri); got != tt.want {
			t.Errorf("ExtractFilenameFromGCSURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestStatementObjectName(t *testing.T) {
	got := StatementObjectName("abc123", "../uploads/MPESA Statement.pdf")
	if got != "statements/abc123/MPESA Statement.pdf" {
		t.Errorf("StatementObjectName() = %q", got)
	}

	uri := GCSURI("bucket", got)
	if ExtractFilenameFromGCSURI(uri) != "MPESA Statement.pdf" {
		t.Errorf("round trip filename = %q", ExtractFilenameFromGCSURI(uri))
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"statement.PDF": "application/pdf",
		"statement.csv": "text/csv",
		"statement":     "application/octet-stream",
	}
	for name, want := range tests {
		if got := contentTypeFor(name); got != want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}
