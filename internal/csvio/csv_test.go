package csvio

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rollbook/internal/model"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want [][]string
	}{
		{"simple", "a,b\nc,d", [][]string{{"a", "b"}, {"c", "d"}}},
		{"crlf counts once", "a,b\r\nc,d\r\n", [][]string{{"a", "b"}, {"c", "d"}}},
		{"bare cr", "a\rb", [][]string{{"a"}, {"b"}}},
		{"quoted comma and newline", "\"Doe, Jane\",\"line1\nline2\"", [][]string{{"Doe, Jane", "line1\nline2"}}},
		{"doubled quotes", `"say ""hi""",x`, [][]string{{`say "hi"`, "x"}}},
		{"trailing blank lines", "a,b\n\n\n", [][]string{{"a", "b"}}},
		{"empty trailing field", "a,\n", [][]string{{"a", ""}}},
		{"lone comma line", ",\n", [][]string{{"", ""}}},
		{"empty text", "", nil},
		{"no trailing terminator", "x", [][]string{{"x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.text))
		})
	}
}

func TestDropBlankRows(t *testing.T) {
	rows := [][]string{{"", " "}, {"a", ""}, {"  "}}
	assert.Equal(t, [][]string{{"a", ""}}, DropBlankRows(rows))
}

func TestDetectHeader(t *testing.T) {
	h := DetectHeader([]string{" Student ID ", "Full Name"})
	assert.Equal(t, Header{NameIndex: 1, IDIndex: 0, Present: true}, h)

	h = DetectHeader([]string{"Ann", "X1"})
	assert.False(t, h.Present)

	h = DetectHeader([]string{"Name", "Roll"})
	assert.False(t, h.Present)
}

func TestExtractStudentsWithHeader(t *testing.T) {
	got := ExtractStudents("Name,ID\nAnn,X1")
	assert.Equal(t, []model.NewStudent{{Name: "Ann", StudentUID: "X1"}}, got.Students)
	assert.Zero(t, got.Skipped)
}

func TestExtractStudentsWithoutHeader(t *testing.T) {
	got := ExtractStudents("Ann,X1\nBo,X2")
	assert.Equal(t, []model.NewStudent{
		{Name: "Ann", StudentUID: "X1"},
		{Name: "Bo", StudentUID: "X2"},
	}, got.Students)
}

func TestExtractStudentsReorderedHeaderAndSkips(t *testing.T) {
	text := "ID,Email,Name\r\nS1,a@x,Ann\r\n,b@x,Bo\r\nS3,c@x,\r\n,,\r\nS4,d@x,  Di  \r\n"
	got := ExtractStudents(text)
	assert.Equal(t, []model.NewStudent{
		{Name: "Ann", StudentUID: "S1"},
		{Name: "Di", StudentUID: "S4"},
	}, got.Students)
	assert.Equal(t, 2, got.Skipped)
	assert.False(t, got.Empty)
}

func TestExtractStudentsShortRows(t *testing.T) {
	got := ExtractStudents("Ann\nBo,B2")
	assert.Equal(t, []model.NewStudent{{Name: "Bo", StudentUID: "B2"}}, got.Students)
	assert.Equal(t, 1, got.Skipped)
}

func TestExtractStudentsEmpty(t *testing.T) {
	assert.True(t, ExtractStudents("\n , \n").Empty)
	assert.True(t, ExtractStudents("").Empty)
}

func TestExtractSample(t *testing.T) {
	got := ExtractStudents(SampleCSV)
	assert.Len(t, got.Students, 2)
	assert.Equal(t, "CPU-2041", got.Students[0].StudentUID)
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "plain", Escape("plain"))
	assert.Equal(t, `"a,b"`, Escape("a,b"))
	assert.Equal(t, `"say ""hi"""`, Escape(`say "hi"`))
	assert.Equal(t, "\"two\nlines\"", Escape("two\nlines"))
	assert.Equal(t, "", Escape(""))
}

func TestBuildParseRoundTrip(t *testing.T) {
	rows := [][]string{
		{"Name", "ID"},
		{"Doe, Jane", `J"1`},
		{"multi\nline", "M,2"},
		{`""`, "plain"},
	}
	assert.Equal(t, rows, Parse(Build(rows)))
}
