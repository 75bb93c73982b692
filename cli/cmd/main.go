package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"neuralsearch/cli/client"
	"neuralsearch/cli/htmltext"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
)

const usage = `usage: neuralsearch-cli [-server URL] <command> [args]

commands:
  health                 check the server is up
  upload FILE...         upload text or HTML files
  list                   list all documents
  get ID                 show one document and whether it is searchable
  search [-k N] QUERY    find the documents nearest to QUERY
`

func main() {
	_ = godotenv.Load()

	defaultServer := os.Getenv("NEURALSEARCH_URL")
	if defaultServer == "" {
		defaultServer = "http://localhost:8000"
	}

	serverURL := flag.String("server", defaultServer, "API base URL")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cl := client.New(*serverURL, *timeout)
	args := flag.Args()[1:]

	var err error
	switch flag.Arg(0) {
	case "health":
		err = health(cl)
	case "upload":
		err = upload(cl, args)
	case "list":
		err = list(cl)
	case "get":
		err = get(cl, args)
	case "search":
		err = search(cl, args)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func health(cl *client.Client) error {
	h, err := cl.Health()
	if err != nil {
		return err
	}
	color.Green("%s (environment %s, version %s)", h.Status, h.Environment, h.Version)
	return nil
}

func upload(cl *client.Client, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("upload needs at least one file")
	}

	bar := getProgressBar(len(paths), "Uploading")
	var failed int
	for _, path := range paths {
		bar.Describe(color.BlueString("Uploading %s", filepath.Base(path)))

		if err := uploadFile(cl, path); err != nil {
			failed++
			_ = bar.Clear()
			color.Red("%s: %v", path, err)
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Println()

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(paths))
	}
	color.Green("✓ Uploaded %d documents; embeddings are computed in the background", len(paths))
	return nil
}

func uploadFile(cl *client.Client, path string) error {
	data, err := htmltext.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := cl.Upload(filepath.Base(path), data)
	if err != nil {
		return err
	}
	fmt.Printf("\r%s %s\n", color.GreenString(doc.ID.String()), doc.Filename)
	return nil
}

func list(cl *client.Client) error {
	docs, err := cl.List()
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		color.Yellow("no documents")
		return nil
	}
	for _, doc := range docs {
		fmt.Printf("%s  %s  %s\n",
			color.CyanString(doc.ID.String()),
			doc.CreatedAt.Local().Format(time.DateTime),
			doc.Filename)
	}
	return nil
}

func get(cl *client.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("get needs exactly one document id")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid document id %q", args[0])
	}
	doc, err := cl.Get(id)
	if err != nil {
		return err
	}

	state := color.YellowString("pending")
	if doc.Embedded {
		state = color.GreenString("searchable")
	}
	fmt.Printf("%s  %s  [%s]\n\n%s\n", color.CyanString(doc.ID.String()), doc.Filename, state, doc.Content)
	return nil
}

func search(cl *client.Client, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	k := fs.Int("k", 0, "number of results (server default when 0)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")

	spinner := getSpinner("Searching")
	docs, err := cl.Search(query, *k)
	_ = spinner.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	if len(docs) == 0 {
		color.Yellow("no searchable documents match yet")
		return nil
	}
	for i, doc := range docs {
		fmt.Printf("%s %s  %s\n", color.New(color.Bold).Sprintf("%d.", i+1), doc.Filename, color.CyanString(doc.ID.String()))
		fmt.Printf("   %s\n", preview(doc.Content, 120))
	}
	return nil
}

func preview(content string, max int) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "…"
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowCount(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
