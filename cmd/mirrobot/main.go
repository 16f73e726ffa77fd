// mirrobot is the chat-bot-fronted video transcoding orchestrator. main
// wires every collaborator package together the way the teacher's main.go
// wires the HTTP API, cluster and pipeline packages together: parse flags
// with ff, construct each dependency in order, hand them to an errgroup,
// and shut down cleanly on SIGTERM/SIGINT/SIGQUIT.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/dispatcher"
	"github.com/celestix/gotgproto/dispatcher/handlers"
	"github.com/celestix/gotgproto/dispatcher/handlers/filters"
	"github.com/celestix/gotgproto/ext"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/google/uuid"
	"github.com/gotd/td/tg"
	"golang.org/x/sync/errgroup"

	"github.com/mirrobot/mirrobot/cachestore"
	"github.com/mirrobot/mirrobot/chat"
	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/download"
	"github.com/mirrobot/mirrobot/encode"
	"github.com/mirrobot/mirrobot/history"
	"github.com/mirrobot/mirrobot/job"
	"github.com/mirrobot/mirrobot/log"
	"github.com/mirrobot/mirrobot/metrics"
	"github.com/mirrobot/mirrobot/process"
	"github.com/mirrobot/mirrobot/suspend"
	"github.com/mirrobot/mirrobot/template"
)

func main() {
	fs := flag.NewFlagSet("mirrobot", flag.ExitOnError)
	cli, err := config.LoadCli(fs, os.Args[1:])
	if err != nil {
		log.LogNoRequestID("fatal: loading config", "err", err.Error())
		os.Exit(1)
	}
	log.SetVerbosity(cli.LogLevel)

	for _, dir := range []string{cli.StateDir, cli.CacheDir, cli.ManualDropDir, cli.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.LogNoRequestID("fatal: creating state directory", "dir", dir, "err", err.Error())
			os.Exit(1)
		}
	}

	cache, err := cachestore.Open(filepath.Join(cli.StateDir, "cache.json"), cli.ManualDropDir)
	if err != nil {
		log.LogNoRequestID("fatal: opening raw cache registry", "err", err.Error())
		os.Exit(1)
	}
	hist, err := history.Open(filepath.Join(cli.StateDir, "history.json"))
	if err != nil {
		log.LogNoRequestID("fatal: opening history store", "err", err.Error())
		os.Exit(1)
	}
	tpls, err := template.Open(filepath.Join(cli.StateDir, "templates.json"))
	if err != nil {
		log.LogNoRequestID("fatal: opening template catalogue", "err", err.Error())
		os.Exit(1)
	}
	auth, err := chat.OpenAuthList(filepath.Join(cli.StateDir, "auth.json"), cli.OwnerID)
	if err != nil {
		log.LogNoRequestID("fatal: opening auth list", "err", err.Error())
		os.Exit(1)
	}
	for _, id := range cli.AuthIDs {
		auth.Add(id)
	}

	runner := process.New()
	downloader := download.New(runner)
	encoder := encode.New(runner)

	client, err := gotgproto.NewClient(
		cli.TelegramAPIID,
		cli.TelegramAPIHash,
		gotgproto.ClientTypeBot(cli.TelegramBotToken),
		&gotgproto.ClientOpts{
			Session: sessionMaker.SqliteSession(cli.TelegramSessionPath),
		},
	)
	if err != nil {
		log.LogNoRequestID("fatal: starting telegram client", "err", err.Error())
		os.Exit(1)
	}
	transport := chat.NewTelegramTransport(client)

	queue := job.NewQueue()
	worker := job.NewWorker(queue, job.Dependencies{
		Downloader: downloader,
		Encoder:    encoder,
		Cache:      cache,
		Suspend:    suspend.New(),
		History:    hist,
		Hosts:      cli.Hosts,
		Transport:  transport,
		WorkDir:    cli.OutputDir,
	})

	router := &chat.Router{
		Queue:     queue,
		Worker:    worker,
		Cache:     cache,
		History:   hist,
		Templates: tpls,
		AuthList:  auth,
		NewID:     func() string { return uuid.NewString() },
	}

	client.Dispatcher.AddHandler(handlers.NewMessage(filters.Message.Text, func(c *ext.Context, u *ext.Update) error {
		msg := u.EffectiveMessage
		cmd, ok := parseCommand(msg.Text)
		if !ok {
			return dispatcher.EndGroups
		}
		cmd.OwnerID = u.EffectiveUser().GetId()
		reply, err := router.Handle(cmd)
		if err != nil {
			reply = fmt.Sprintf("error: %s", err)
		}
		_, sendErr := c.Reply(u, ext.ReplyTextString(reply), nil)
		if sendErr != nil {
			log.LogError("chat", "replying to command", sendErr, "verb", cmd.Verb)
		}
		return dispatcher.EndGroups
	}))

	// A document message (any document, not only a reply to the prompt)
	// is the only way the
	// subtitle-suspension protocol (spec.md §4.8) actually resumes a job:
	// Worker.Resume needs a local file path, so the attachment is
	// downloaded before being handed off.
	client.Dispatcher.AddHandler(handlers.NewMessage(filters.Message.Media, func(c *ext.Context, u *ext.Update) error {
		msg := u.EffectiveMessage
		media, ok := msg.Media.(*tg.MessageMediaDocument)
		if !ok {
			return dispatcher.EndGroups
		}
		doc, ok := media.Document.(*tg.Document)
		if !ok {
			return dispatcher.EndGroups
		}
		ownerID := u.EffectiveUser().GetId()
		destPath := filepath.Join(cli.CacheDir, fmt.Sprintf("subtitle-%d-%d.srt", ownerID, doc.ID))

		if err := transport.DownloadDocument(context.Background(), doc, destPath); err != nil {
			log.LogError("chat", "downloading subtitle attachment failed", err)
			_, _ = c.Reply(u, ext.ReplyTextString(fmt.Sprintf("error: %s", err)), nil)
			return dispatcher.EndGroups
		}
		if !worker.Resume(destPath, ownerID) {
			_, _ = c.Reply(u, ext.ReplyTextString("no suspended job is waiting for a subtitle"), nil)
		}
		return dispatcher.EndGroups
	}))

	group, ctx := errgroup.WithContext(context.Background())

	group.Go(func() error {
		return metrics.ListenAndServe(ctx, cli.MetricsPort)
	})
	group.Go(func() error {
		worker.Run(ctx)
		return nil
	})
	group.Go(func() error {
		return client.Idle()
	})
	group.Go(func() error {
		return handleSignals(ctx)
	})

	log.LogNoRequestID("mirrobot started", "host", config.Hostname(), "version", config.Version)
	if err := group.Wait(); err != nil {
		log.LogNoRequestID("shutdown", "reason", err.Error())
	}
}

// parseCommand tokenises a raw chat message into a verb and its
// arguments. Real argument splitting (e.g. deciding whether a comma-joined
// batch URL list is one arg or several) is left to chat.Router, since the
// actual command grammar is an out-of-scope chat-layer concern (spec.md
// §6) — this is the minimal bridge needed to turn Telegram text into a
// chat.Command at all.
func parseCommand(text string) (chat.Command, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Command{}, false
	}
	fields := strings.Fields(text)
	verb := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if verb == "" {
		return chat.Command{}, false
	}
	var args []string
	if len(fields) > 1 {
		args = []string{strings.TrimSpace(strings.TrimPrefix(text, fields[0]))}
	}
	return chat.Command{Verb: verb, Args: args}, true
}

func handleSignals(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	for {
		select {
		case s := <-c:
			return fmt.Errorf("caught signal=%v", s)
		case <-ctx.Done():
			return nil
		}
	}
}
