package suite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/joho/godotenv"

	"voxedit/internal/config"
	"voxedit/internal/models"
)

// Actual environment
var (
	_              = godotenv.Load("../.env")
	cfg            = config.MustLoadPath(os.Getenv("CONFIG_PATH"))
	rootPass       = os.Getenv("ROOT_PASS")
	passDefaultLen = 10
)

// RootLogin logins root user
func RootLogin() (string, error) {
	c := http.Client{Timeout: cfg.HTTPServer.Timeout}

	bodyReq, err := json.Marshal(map[string]string{
		"login": "root",
		"pass":  rootPass,
	})

	if err != nil {
		return "", nil
	}

	url := "http://" + cfg.Address + "/login"

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(bodyReq))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return "", err
	}

	defer resp.Body.Close()
	bodyResp, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var form struct {
		Token string `json:"token"`
	}

	if err = json.Unmarshal(bodyResp, &form); err != nil {
		return "", err
	}

	return form.Token, nil
}

func RandomFakePassword() string {
	return gofakeit.Password(true, true, true, true, false, passDefaultLen)
}

// RandomProjectIn returns a transcript payload with
// contiguous, non-overlapping segments.
func RandomProjectIn(segments int) models.ProjectIn {
	in := models.ProjectIn{
		Title:    gofakeit.BookTitle(),
		Author:   gofakeit.Name(),
		Language: "en",
		Videos: []models.VideoTranscriptIn{{
			Title:    gofakeit.MovieName(),
			FilePath: fmt.Sprintf("/media/%s.mp4", gofakeit.UUID()),
			Duration: float64(segments) * 5,
		}},
	}

	for i := 0; i < segments; i++ {
		start := float64(i) * 5
		in.Videos[0].Segments = append(in.Videos[0].Segments, models.TranscriptSegmentIn{
			Start: start,
			End:   start + 5,
			Text:  gofakeit.Sentence(6),
		})
	}

	return in
}
