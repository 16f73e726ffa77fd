// Router maps the command surface of spec.md §6 onto the core engine's
// collaborators (job.Queue, job.Worker, cachestore.Store, history.Store,
// template.Catalogue). The chat transport and the actual command parsing
// (tokenising a raw message into a verb + args, the multi-turn template
// picker / resolution-picker UI) are themselves out-of-scope collaborators
// per spec.md §6 — Router only needs a verb and its args already split
// out, however the concrete bot framework chooses to get there.
package chat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mirrobot/mirrobot/cachestore"
	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/encode"
	"github.com/mirrobot/mirrobot/history"
	"github.com/mirrobot/mirrobot/job"
	"github.com/mirrobot/mirrobot/template"
)

// IDGenerator mints job ids. Satisfied by google/uuid in production,
// overridden with a counter in tests.
type IDGenerator func() string

// Router dispatches one parsed command at a time; it is safe for
// concurrent use since every collaborator it holds is already
// internally synchronised.
type Router struct {
	Queue     *job.Queue
	Worker    *job.Worker
	Cache     *cachestore.Store
	History   *history.Store
	Templates *template.Catalogue
	AuthList  *AuthList
	NewID     IDGenerator
}

// Command is one parsed chat message: a verb plus its argument list,
// already tokenised by the (out-of-scope) command parser.
type Command struct {
	OwnerID int64
	Verb    string
	Args    []string
}

// Handle runs one command and returns the chat-facing reply text.
func (r *Router) Handle(c Command) (string, error) {
	switch c.Verb {
	case "start":
		return "Send a URL to begin, or try `template`, `files`, `queue`, `status`.", nil

	case "url":
		return r.submitEncode(c.OwnerID, c.Args)

	case "leech":
		return r.submitSimple(c.OwnerID, job.KindLeech, c.Args)
	case "convert":
		return r.submitBatch(c.OwnerID, job.KindConvert, c.Args)
	case "fp":
		return r.submitBatch(c.OwnerID, job.KindMirror, c.Args)
	case "up":
		return r.submitBatch(c.OwnerID, job.KindMultiHost, c.Args)

	case "fb":
		return "", fmt.Errorf("chat: fb requires a Seedbox directory-listing API, which is out of scope for the core engine")

	case "files":
		return r.files()
	case "encode":
		return r.encodeFromCache(c.OwnerID, c.Args)
	case "clean":
		if err := r.Cache.Clear(); err != nil {
			return "", err
		}
		return "cache cleared", nil

	case "queue":
		return r.queueSnapshot(), nil
	case "clearqueue":
		n := r.Queue.Clear()
		return fmt.Sprintf("cleared %d pending job(s)", n), nil
	case "status":
		return r.status(), nil
	case "cancel":
		if r.Worker.Cancel(c.OwnerID) {
			return "cancelling your running job", nil
		}
		return "you have no running job", nil

	case "template":
		return r.templateList(), nil
	case "templateadd":
		return r.templateAdd(c.Args)
	case "templatedel":
		return r.templateDel(c.Args)

	case "links":
		return r.links(""), nil
	case "linksdrive":
		return r.links("Drive"), nil
	case "linksbox":
		return r.links("Mirror"), nil
	case "clearhistory":
		if err := r.History.Clear(); err != nil {
			return "", err
		}
		return "history cleared", nil
	case "addlist":
		return "", fmt.Errorf("chat: addlist requires parsing a past result message, which is a chat-layer concern")

	case "auth", "unauth", "users", "log", "kill", "update", "tools":
		return r.adminCommand(c)

	default:
		return "", fmt.Errorf("chat: unknown command %q", c.Verb)
	}
}

func (r *Router) submitEncode(ownerID int64, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("chat: url command requires a source URL")
	}
	tpl, ok := r.Templates.Get("default")
	if !ok {
		tpl = template.Template{
			Resolutions: []config.Resolution{config.Res720p},
			CRF:         23,
			Audio:       encode.AudioHE,
			Mode:        encode.ModeCRF,
			FontSize:    16,
			Margin:      25,
		}
	}
	j := job.New(r.NewID(), ownerID, job.KindEncode, args[0])
	j.Resolutions = tpl.Resolutions
	j.Mode = tpl.Mode
	j.Audio = tpl.Audio
	j.Style = encode.SubtitleStyle{FontSize: tpl.FontSize, Margin: tpl.Margin}
	j.SubtitleKind = job.SubtitleSourceEmbeddedAuto
	for _, res := range tpl.Resolutions {
		j.CRF[res] = tpl.CRFFor(res)
	}
	r.Queue.Submit(j)
	return fmt.Sprintf("queued %s as %s", args[0], j.ID), nil
}

func (r *Router) submitSimple(ownerID int64, kind job.Kind, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("chat: %s requires a source URL", kind)
	}
	j := job.New(r.NewID(), ownerID, kind, args[0])
	r.Queue.Submit(j)
	return fmt.Sprintf("queued %s as %s", args[0], j.ID), nil
}

func (r *Router) submitBatch(ownerID int64, kind job.Kind, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("chat: %s requires at least one source URL", kind)
	}
	urls := strings.Split(args[0], ",")
	ids := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		j := job.New(r.NewID(), ownerID, kind, u)
		r.Queue.Submit(j)
		ids = append(ids, j.ID)
	}
	return fmt.Sprintf("queued %d job(s): %s", len(ids), strings.Join(ids, ", ")), nil
}

func (r *Router) files() (string, error) {
	entries, err := r.Cache.List()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s: %s (%s)\n", e.ID, e.Name, byteSize(e.Size))
	}
	if b.Len() == 0 {
		return "cache is empty", nil
	}
	return b.String(), nil
}

func (r *Router) encodeFromCache(ownerID int64, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("chat: encode requires one or more cache ids")
	}
	ids := strings.Split(args[0], ",")
	queued := 0
	for _, id := range ids {
		id = strings.TrimSpace(id)
		entry, ok := r.Cache.Get(id)
		if !ok {
			continue
		}
		j := job.New(r.NewID(), ownerID, job.KindEncode, "")
		j.CacheID = entry.ID
		j.DownloadedFile = entry.Path
		j.DisplayName = entry.Name
		j.Resolutions = []config.Resolution{config.Res720p}
		j.CRF[config.Res720p] = 23
		j.Mode = encode.ModeCRF
		j.Audio = encode.AudioHE
		j.Style = encode.SubtitleStyle{FontSize: 16, Margin: 25}
		j.SubtitleKind = job.SubtitleSourceEmbeddedAuto
		r.Queue.Submit(j)
		queued++
	}
	return fmt.Sprintf("queued %d job(s) from cache", queued), nil
}

func (r *Router) queueSnapshot() string {
	jobs := r.Queue.Snapshot()
	if len(jobs) == 0 {
		return "queue is empty"
	}
	var b strings.Builder
	for i, j := range jobs {
		fmt.Fprintf(&b, "%d. %s [%s]\n", i+1, j.DisplayName, j.Kind)
	}
	return b.String()
}

func (r *Router) status() string {
	running := r.Worker.Running()
	if running == nil {
		return fmt.Sprintf("idle, %d job(s) queued", r.Queue.Depth())
	}
	return fmt.Sprintf("running %s [%s], %d job(s) queued", running.DisplayName, running.Kind, r.Queue.Depth())
}

func (r *Router) templateList() string {
	tpls := r.Templates.List()
	if len(tpls) == 0 {
		return "no templates saved"
	}
	var b strings.Builder
	for key, t := range tpls {
		fmt.Fprintf(&b, "%s: %s\n", key, t.Name)
	}
	return b.String()
}

func (r *Router) templateAdd(args []string) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("chat: template add requires a key and a resolution list")
	}
	key := args[0]
	var resolutions []config.Resolution
	for _, part := range strings.Split(args[1], ",") {
		resolutions = append(resolutions, config.Resolution(strings.TrimSpace(part)))
	}
	crf := 23
	if len(args) > 2 {
		if n, err := strconv.Atoi(args[2]); err == nil {
			crf = n
		}
	}
	t := template.Template{
		Name:        key,
		Resolutions: resolutions,
		CRF:         crf,
		Audio:       encode.AudioHE,
		Mode:        encode.ModeCRF,
		FontSize:    16,
		Margin:      25,
	}
	if err := r.Templates.Save(key, t); err != nil {
		return "", err
	}
	return fmt.Sprintf("saved template %s", key), nil
}

func (r *Router) templateDel(args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("chat: template del requires a key")
	}
	ok, err := r.Templates.Delete(args[0])
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("no such template %s", args[0]), nil
	}
	return fmt.Sprintf("deleted template %s", args[0]), nil
}

func (r *Router) links(host string) string {
	records := r.History.All()
	if host == "" {
		var b strings.Builder
		seen := map[string]bool{}
		for _, rec := range records {
			for h := range rec.Links {
				seen[h] = true
			}
		}
		for h := range seen {
			b.WriteString(history.FormatLinks(records, h))
		}
		return b.String()
	}
	return history.FormatLinks(records, host)
}

func (r *Router) adminCommand(c Command) (string, error) {
	if r.AuthList == nil || !r.AuthList.IsOwner(c.OwnerID) {
		return "", fmt.Errorf("chat: %s requires owner authorisation", c.Verb)
	}
	switch c.Verb {
	case "auth":
		if len(c.Args) == 0 {
			return "", fmt.Errorf("chat: auth requires a user id")
		}
		id, err := strconv.ParseInt(c.Args[0], 10, 64)
		if err != nil {
			return "", fmt.Errorf("chat: invalid user id: %w", err)
		}
		r.AuthList.Add(id)
		return fmt.Sprintf("authorised %d", id), nil
	case "unauth":
		if len(c.Args) == 0 {
			return "", fmt.Errorf("chat: unauth requires a user id")
		}
		id, err := strconv.ParseInt(c.Args[0], 10, 64)
		if err != nil {
			return "", fmt.Errorf("chat: invalid user id: %w", err)
		}
		r.AuthList.Remove(id)
		return fmt.Sprintf("revoked %d", id), nil
	case "users":
		return strings.Join(intsToStrings(r.AuthList.List()), ", "), nil
	default:
		return "", fmt.Errorf("chat: %s is not implemented by the core engine (log tailing, process kill, script update and tool listing belong to the deployment layer)", c.Verb)
	}
}

func intsToStrings(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	return out
}

func byteSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
