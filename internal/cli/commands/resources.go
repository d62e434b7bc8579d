package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/templeadmin/templeadmin/internal/cli/client"
)

// call runs one API request after checking the session, and prints the response
func (a *App) call(ctx context.Context, fn func(context.Context) (*client.Response, error)) (*client.Response, error) {
	if err := a.checkSession(); err != nil {
		return nil, err
	}

	resp, err := fn(ctx)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w\nRun 'templeadmin login' to authenticate", err)
		}
		return nil, err
	}

	return resp, nil
}

func (a *App) print(ctx context.Context, fn func(context.Context) (*client.Response, error)) error {
	resp, err := a.call(ctx, fn)
	if err != nil {
		return err
	}
	return printJSON(a.Out, resp.Body)
}

func (a *App) printList(ctx context.Context, listKey string, fn func(context.Context) (*client.Response, error)) error {
	resp, err := a.call(ctx, fn)
	if err != nil {
		return err
	}

	items, err := client.DecodeList[json.RawMessage](resp, listKey)
	if err != nil {
		return err
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal list: %w", err)
	}
	return printJSON(a.Out, data)
}

// download writes a raw response body to path, or to stdout when path is empty or "-"
func (a *App) download(ctx context.Context, path string, fn func(context.Context) (*client.Response, error)) error {
	resp, err := a.call(ctx, fn)
	if err != nil {
		return err
	}

	if path == "" || path == "-" {
		_, err := a.Out.Write(resp.Body)
		return err
	}

	if err := os.WriteFile(path, resp.Body, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(a.ErrOut, "✓ Saved %d bytes to %s\n", len(resp.Body), path)
	return nil
}

// payloadFlags collects a request body from flags: JSON via --data/--data-file,
// or multipart via --form/--file
type payloadFlags struct {
	data     string
	dataFile string
	fields   []string
	files    []string
}

func (p *payloadFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.data, "data", "", "JSON body")
	cmd.Flags().StringVar(&p.dataFile, "data-file", "", "Read JSON body from file (- for stdin)")
	cmd.Flags().StringArrayVar(&p.fields, "form", nil, "Multipart form field key=value (repeatable)")
	cmd.Flags().StringArrayVar(&p.files, "file", nil, "Multipart file field=path (repeatable)")
}

// build returns the request body and a cleanup that closes opened files
func (p *payloadFlags) build(stdin io.Reader) (any, func(), error) {
	noop := func() {}

	if len(p.fields) > 0 || len(p.files) > 0 {
		if p.data != "" || p.dataFile != "" {
			return nil, noop, fmt.Errorf("--data/--data-file cannot be combined with --form/--file")
		}
		return p.buildForm()
	}

	var raw []byte
	switch {
	case p.data != "" && p.dataFile != "":
		return nil, noop, fmt.Errorf("use either --data or --data-file, not both")
	case p.data != "":
		raw = []byte(p.data)
	case p.dataFile == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to read stdin: %w", err)
		}
		raw = b
	case p.dataFile != "":
		b, err := os.ReadFile(p.dataFile)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to read %s: %w", p.dataFile, err)
		}
		raw = b
	default:
		return nil, noop, fmt.Errorf("no payload given (use --data, --data-file, --form or --file)")
	}

	if !json.Valid(raw) {
		return nil, noop, fmt.Errorf("payload is not valid JSON")
	}
	return json.RawMessage(raw), noop, nil
}

func (p *payloadFlags) buildForm() (any, func(), error) {
	form := client.NewForm()
	var opened []*os.File
	cleanup := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	for _, kv := range p.fields {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			cleanup()
			return nil, func() {}, fmt.Errorf("invalid --form '%s', expected key=value", kv)
		}
		form.Set(key, value)
	}

	for _, fp := range p.files {
		field, path, ok := strings.Cut(fp, "=")
		if !ok || field == "" || path == "" {
			cleanup()
			return nil, func() {}, fmt.Errorf("invalid --file '%s', expected field=path", fp)
		}
		f, err := os.Open(path)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("failed to open %s: %w", path, err)
		}
		opened = append(opened, f)
		form.AddFile(field, filepath.Base(path), f)
	}

	return form, cleanup, nil
}

func parseQuery(pairs []string) (url.Values, error) {
	q := url.Values{}
	for _, kv := range pairs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --query '%s', expected key=value", kv)
		}
		q.Add(key, value)
	}
	return q, nil
}

// newCollectionCmd builds ls/get/create/update/delete for a REST collection
func newCollectionCmd(app *App, use, short, listKey string, collection func(*client.Client) client.Collection) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
	}

	var query []string
	ls := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List " + use,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseQuery(query)
			if err != nil {
				return err
			}
			return app.printList(cmd.Context(), listKey, func(ctx context.Context) (*client.Response, error) {
				return collection(app.Client).List(ctx, params)
			})
		},
	}
	ls.Flags().StringArrayVar(&query, "query", nil, "Query parameter key=value (repeatable)")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.print(cmd.Context(), func(ctx context.Context) (*client.Response, error) {
				return collection(app.Client).Get(ctx, args[0])
			})
		},
	}

	var createPayload payloadFlags
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, cleanup, err := createPayload.build(cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer cleanup()
			return app.print(cmd.Context(), func(ctx context.Context) (*client.Response, error) {
				return collection(app.Client).Create(ctx, body)
			})
		},
	}
	createPayload.register(create)

	var updatePayload payloadFlags
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, cleanup, err := updatePayload.build(cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer cleanup()
			return app.print(cmd.Context(), func(ctx context.Context) (*client.Response, error) {
				return collection(app.Client).Update(ctx, args[0], body)
			})
		},
	}
	updatePayload.register(update)

	del := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an item",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := app.call(cmd.Context(), func(ctx context.Context) (*client.Response, error) {
				return collection(app.Client).Delete(ctx, args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "✓ Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(ls, get, create, update, del)
	return cmd
}

// NewEventsCmd creates the events command
func NewEventsCmd(app *App) *cobra.Command {
	return newCollectionCmd(app, "events", "Manage temple events", "events", (*client.Client).Events)
}

// NewServicesCmd creates the services command
func NewServicesCmd(app *App) *cobra.Command {
	return newCollectionCmd(app, "services", "Manage temple services", "services", (*client.Client).Services)
}

// NewStaffCmd creates the staff command
func NewStaffCmd(app *App) *cobra.Command {
	return newCollectionCmd(app, "staff", "Manage staff members", "staff", (*client.Client).Staff)
}

// NewDonorsCmd creates the donors command
func NewDonorsCmd(app *App) *cobra.Command {
	cmd := newCollectionCmd(app, "donors", "Manage donors", "donors", func(c *client.Client) client.Collection {
		return c.Donors().Collection
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show donation statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.print(cmd.Context(), app.Client.Donors().Statistics)
		},
	})

	var out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Export the donor list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.download(cmd.Context(), out, app.Client.Donors().Export)
		},
	}
	export.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	cmd.AddCommand(export)

	return cmd
}

// NewImagesCmd creates the images command
func NewImagesCmd(app *App) *cobra.Command {
	cmd := newCollectionCmd(app, "images", "Manage home page images", "images", func(c *client.Client) client.Collection {
		return c.Images().Collection
	})

	var uploadPayload payloadFlags
	upload := &cobra.Command{
		Use:   "upload",
		Short: "Upload an image (--file image=path)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(uploadPayload.files) == 0 {
				return fmt.Errorf("--file is required for upload")
			}
			body, cleanup, err := uploadPayload.buildForm()
			if err != nil {
				return err
			}
			defer cleanup()
			return app.print(cmd.Context(), func(ctx context.Context) (*client.Response, error) {
				return app.Client.Images().Upload(ctx, body.(*client.Form))
			})
		},
	}
	upload.Flags().StringArrayVar(&uploadPayload.fields, "form", nil, "Form field key=value (repeatable)")
	upload.Flags().StringArrayVar(&uploadPayload.files, "file", nil, "File field=path (repeatable)")

	var out string
	download := &cobra.Command{
		Use:   "download <id>",
		Short: "Download an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.download(cmd.Context(), out, func(ctx context.Context) (*client.Response, error) {
				return app.Client.Images().Download(ctx, args[0])
			})
		},
	}
	download.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")

	cmd.AddCommand(upload, download)
	return cmd
}

// NewTimingsCmd creates the timings command
func NewTimingsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timings",
		Short: "Manage temple timings and holidays",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List timings",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.printList(cmd.Context(), "timings", app.Client.Timings().List)
		},
	})

	var updatePayload payloadFlags
	update := &cobra.Command{
		Use:   "update <day>",
		Short: "Update the timing of a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, cleanup, err := updatePayload.build(cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer cleanup()
			return app.print(cmd.Context(), func(ctx context.Context) (*client.Response, error) {
				return app.Client.Timings().Update(ctx, args[0], body)
			})
		},
	}
	updatePayload.register(update)

	var holidayPayload payloadFlags
	addHoliday := &cobra.Command{
		Use:   "add-holiday",
		Short: "Add a holiday",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, cleanup, err := holidayPayload.build(cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer cleanup()
			return app.print(cmd.Context(), func(ctx context.Context) (*client.Response, error) {
				return app.Client.Timings().AddHoliday(ctx, body)
			})
		},
	}
	holidayPayload.register(addHoliday)

	removeHoliday := &cobra.Command{
		Use:   "remove-holiday <id>",
		Short: "Remove a holiday",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := app.call(cmd.Context(), func(ctx context.Context) (*client.Response, error) {
				return app.Client.Timings().RemoveHoliday(ctx, args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "✓ Removed holiday %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(update, addHoliday, removeHoliday)
	return cmd
}

// NewMeCmd creates the me command
func NewMeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the current user as seen by the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.print(cmd.Context(), app.Client.Auth().Me)
		},
	}
}
