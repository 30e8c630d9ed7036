package storage

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Family
	}{
		{path: "http://example.com/data.csv", want: FamilyHTTP},
		{path: "https://example.com/data.csv?x=1&y=2", want: FamilyHTTP},
		{path: "https://ui.boondmanager/api/resources?date=2024-01-01", want: FamilyHTTP},
		{path: "hdfs://nn:8020/warehouse/a.csv", want: FamilyDistributed},
		{path: "s3a://bucket/a.csv", want: FamilyDistributed},
		{path: "s3://bucket/a.csv", want: FamilyDistributed},
		{path: "file:/tmp/a.csv", want: FamilyLocal},
		{path: "/tmp/a.csv", want: FamilyLocal},
		{path: "relative/a.csv", want: FamilyLocal},
		{path: "", want: FamilyLocal},
		{path: "HTTP://example.com/a.csv", want: FamilyLocal},
		{path: "S3://bucket/a.csv", want: FamilyLocal},
		{path: "ftp://example.com/a.csv", want: FamilyLocal},
		{path: "s3n://bucket/a.csv", want: FamilyLocal},
	}
	for _, tt := range tests {
		if got := Classify(tt.path); got != tt.want {
			t.Fatalf("Classify(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
