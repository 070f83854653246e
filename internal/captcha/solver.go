package captcha

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tcnksm/go-input"
)

// ConsoleSolver saves the captcha image to a file and asks the operator
// to type what it shows.
type ConsoleSolver struct {
	// where the image is written, the file is left in place afterwards
	ImagePath string
	// defaults to input.DefaultUI()
	UI *input.UI
	// receives the hint naming the image file, defaults to os.Stderr
	Out io.Writer
}

func (s ConsoleSolver) ui() *input.UI {
	if s.UI != nil {
		return s.UI
	}
	return input.DefaultUI()
}

func (s ConsoleSolver) out() io.Writer {
	if s.Out != nil {
		return s.Out
	}
	return os.Stderr
}

func validateAnswer(answer string) error {
	if strings.TrimSpace(answer) == "" {
		return fmt.Errorf("the captcha answer cannot be blank")
	}
	return nil
}

// SolveCaptcha blocks until the operator answers or ctx is done.
func (s ConsoleSolver) SolveCaptcha(ctx context.Context, image []byte) (string, error) {
	if s.ImagePath == "" {
		return "", fmt.Errorf("no captcha image path configured")
	}
	dir := filepath.Dir(s.ImagePath)
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return "", err
	}
	err = os.WriteFile(s.ImagePath, image, 0600)
	if err != nil {
		return "", fmt.Errorf("save captcha image: %w", err)
	}
	absolute, err := filepath.Abs(s.ImagePath)
	if err != nil {
		absolute = s.ImagePath
	}
	fmt.Fprintf(s.out(), "captcha image saved to %s\n", absolute)

	type answer struct {
		text string
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		text, err := s.ui().Ask("captcha:", &input.Options{
			Required:     true,
			Loop:         true,
			HideOrder:    true,
			ValidateFunc: validateAnswer,
		})
		done <- answer{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-done:
		if a.err != nil {
			return "", a.err
		}
		return strings.TrimSpace(a.text), nil
	}
}
