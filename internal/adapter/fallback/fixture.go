package fallback

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"

	"github.com/couchcryptid/storm-radar-watch/internal/domain"
)

//go:embed fixtures/*.json
var fixtureFS embed.FS

// Fixture is the static data served when neither the backend nor a cached
// response is available.
type Fixture struct {
	Status  domain.Status
	Images  domain.ImageSet
	Reports []domain.WeatherReport
}

// LoadFixture decodes the embedded fixture files.
func LoadFixture() (Fixture, error) {
	return LoadFixtureFS(fixtureFS, "fixtures")
}

// LoadFixtureFS decodes status.json, images.json and reports.json from dir in fsys.
func LoadFixtureFS(fsys fs.FS, dir string) (Fixture, error) {
	var f Fixture
	if err := decodeFixture(fsys, path.Join(dir, "status.json"), &f.Status); err != nil {
		return Fixture{}, err
	}
	if err := decodeFixture(fsys, path.Join(dir, "images.json"), &f.Images); err != nil {
		return Fixture{}, err
	}
	if err := decodeFixture(fsys, path.Join(dir, "reports.json"), &f.Reports); err != nil {
		return Fixture{}, err
	}
	return f, nil
}

func decodeFixture(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read fixture %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode fixture %s: %w", name, err)
	}
	return nil
}
