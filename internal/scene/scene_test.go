package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const granuleTif = "s1a-iw-rtcm-vv-S1A_IW_GRDH_1SDV_20180118T031947_20180118T032012_009220_01084D_97C9.tif"

func TestParseAcquisitionDate(t *testing.T) {
	tests := []struct {
		name string
		file string
		want string
	}{
		{
			name: "full granule name",
			file: granuleTif,
			want: "20180118T031947",
		},
		{
			name: "short legacy name",
			file: "s1b-iw-rtcm-vv-20170605T031945.tif",
			want: "20170605T031945",
		},
		{
			name: "nested path",
			file: filepath.Join("some", "dir", granuleTif),
			want: "20180118T031947",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAcquisitionDate(tt.file)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAcquisitionDateMalformed(t *testing.T) {
	_, err := ParseAcquisitionDate("notaproduct.tif")
	assert.Error(t, err)
}

func TestParseAcquisitionDateDeterministic(t *testing.T) {
	first, err := ParseAcquisitionDate(granuleTif)
	require.NoError(t, err)
	second, err := ParseAcquisitionDate(granuleTif)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSortByDateStable(t *testing.T) {
	stack := Stack{
		{Path: "c.tif", AcquisitionDate: "20180301T031947"},
		{Path: "a.tif", AcquisitionDate: "20180118T031947"},
		{Path: "b.tif", AcquisitionDate: "20180118T031947"},
	}
	sorted := SortByDate(stack)
	assert.Equal(t, []string{"a.tif", "b.tif", "c.tif"}, sorted.Paths())
	// input untouched
	assert.Equal(t, "c.tif", stack[0].Path)
}

func TestDiscoverNestedAndFlat(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "S1A_IW_20180118T031947-rtc-gamma")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	nested := filepath.Join(sub, granuleTif)
	require.NoError(t, os.WriteFile(nested, []byte("x"), 0o644))

	stack, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, stack, 1)
	assert.Equal(t, nested, stack[0].Path)
	assert.Equal(t, "20180118T031947", stack[0].AcquisitionDate)

	flat := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(flat, granuleTif), []byte("x"), 0o644))
	stack, err = Discover(flat)
	require.NoError(t, err)
	assert.Len(t, stack, 1)
}

func TestFromFilesMissing(t *testing.T) {
	_, err := FromFiles([]string{"/no/such/file.tif"})
	assert.Error(t, err)
}

func TestFilterByDirection(t *testing.T) {
	dir := t.TempDir()
	write := func(date, direction string) Scene {
		sub := filepath.Join(dir, date+"-rtc-gamma")
		require.NoError(t, os.MkdirAll(sub, 0o755))
		tif := filepath.Join(sub, "s1a-iw-rtcm-vv-"+date+".tif")
		require.NoError(t, os.WriteFile(tif, []byte("x"), 0o644))
		xml := filepath.Join(sub, date+".iso.xml")
		body := "<gmd:MD_Metadata>orbit pass " + direction + "</gmd:MD_Metadata>"
		require.NoError(t, os.WriteFile(xml, []byte(body), 0o644))
		return Scene{Path: tif, AcquisitionDate: date}
	}

	asc := write("20180118T031947", "ASCENDING")
	desc := write("20180204T031946", "DESCENDING")

	kept := FilterByDirection(Stack{asc, desc}, Ascending, discardLog{})
	require.Len(t, kept, 1)
	assert.Equal(t, asc.Path, kept[0].Path)
	assert.Equal(t, Ascending, kept[0].FlightDirection)

	kept = FilterByDirection(Stack{asc, desc}, Descending, discardLog{})
	require.Len(t, kept, 1)
	assert.Equal(t, desc.Path, kept[0].Path)
}

func TestParseDirection(t *testing.T) {
	got, err := ParseDirection("a")
	require.NoError(t, err)
	assert.Equal(t, Ascending, got)
	got, err = ParseDirection("d")
	require.NoError(t, err)
	assert.Equal(t, Descending, got)
	_, err = ParseDirection("x")
	assert.Error(t, err)
}

type discardLog struct{}

func (discardLog) Printf(string, ...any) {}
