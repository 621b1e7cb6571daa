// Package tokenctl implements the operator commands of the tokenctl tool:
// generating signing secrets, inspecting tokens issued by the server and
// uploading profile images to presigned URLs.
package tokenctl

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/kiwes/internal/common"
	"github.com/dmitrijs2005/kiwes/internal/logging"
	"github.com/dmitrijs2005/kiwes/internal/netx"
	"github.com/dmitrijs2005/kiwes/internal/server/auth"
	"github.com/dmitrijs2005/kiwes/internal/server/config"
	"github.com/dmitrijs2005/kiwes/internal/server/metrics"
	"golang.org/x/term"
)

const (
	defaultSecretBytes = 64
	uploadTimeout      = 30 * time.Second
	maxImageBytes      = 10 << 20
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

const usage = `usage: tokenctl <command> [flags]

commands:
  keygen [-bytes n]   print a new base64 signing secret
  inspect [-c file]   read a token without echo and describe it
  upload -url u -file f
                      PUT a JPEG to a presigned profile image URL
`

// Run executes the command in args and returns the exit code.
func Run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "keygen":
		err = keygen(args[1:], stdout)
	case "inspect":
		err = inspect(args[1:], stdout)
	case "upload":
		err = upload(args[1:], stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if err != nil {
		fmt.Fprintln(stderr, "tokenctl:", err)
		return 1
	}
	return 0
}

func keygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	n := fs.Int("bytes", defaultSecretBytes, "secret length in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *n < auth.MinSecretLength {
		return fmt.Errorf("secret must be at least %d bytes", auth.MinSecretLength)
	}

	secret := common.GenerateRandByteArray(*n)
	defer common.WipeByteArray(secret)

	_, err := fmt.Fprintln(out, base64.StdEncoding.EncodeToString(secret))
	return err
}

// inspect loads the server configuration the same way the server does,
// so the secret comes from the config file, KIWES_SECRET_KEY or -s.
func inspect(args []string, out io.Writer) error {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return err
	}
	settings, err := cfg.Settings()
	if err != nil {
		return err
	}
	engine, err := auth.NewEngine(settings, nil, nil, logging.NewDiscardLogger(), metrics.Noop{})
	if err != nil {
		return err
	}

	fmt.Fprint(out, "Token: ")
	raw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return err
	}
	token := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(raw)), common.BearerPrefix))
	if token == "" {
		return errors.New("empty token")
	}

	return describe(engine, token, out)
}

func describe(engine *auth.Engine, token string, out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	accessErr := engine.ValidateAccess(token)
	if errors.Is(accessErr, common.ErrUnsupportedToken) {
		if refreshErr := engine.ValidateRefresh(token); !errors.Is(refreshErr, common.ErrUnsupportedToken) {
			fmt.Fprintln(w, "kind:\trefresh")
			fmt.Fprintf(w, "valid:\t%s\n", validity(refreshErr))
			return w.Flush()
		}
	}

	fmt.Fprintln(w, "kind:\taccess")
	fmt.Fprintf(w, "valid:\t%s\n", validity(accessErr))

	claims, err := engine.ParseClaims(token)
	if err != nil {
		return w.Flush()
	}
	fmt.Fprintf(w, "subject:\t%s\n", claims.Subject)
	fmt.Fprintf(w, "authorities:\t%s\n", strings.Join(claims.AuthorityList(), ", "))
	fmt.Fprintf(w, "additional info:\t%t\n", claims.AdditionalInfoProvided)
	if claims.ExpiresAt != nil {
		fmt.Fprintf(w, "expires:\t%s\n", claims.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if left, err := engine.RemainingLifetime(token); err == nil {
		fmt.Fprintf(w, "remaining:\t%s\n", left.Truncate(time.Second))
	}
	return w.Flush()
}

func validity(err error) string {
	if err == nil {
		return "yes"
	}
	return fmt.Sprintf("no (%v)", err)
}

// upload sends a profile image to the URL issued by GET /mypage/profileImg.
func upload(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	url := fs.String("url", "", "presigned upload URL")
	path := fs.String("file", "", "JPEG image to upload")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *url == "" || *path == "" {
		return errors.New("upload needs -url and -file")
	}

	body, err := os.ReadFile(*path)
	if err != nil {
		return err
	}
	if len(body) > maxImageBytes {
		return fmt.Errorf("image is larger than %d bytes", maxImageBytes)
	}

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()
	if err := netx.PutPresigned(ctx, http.DefaultClient, *url, "image/jpeg", body); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "uploaded %d bytes\n", len(body))
	return err
}
