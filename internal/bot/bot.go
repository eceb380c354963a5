package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/subvote/internal/abuse"
	"github.com/roach88/subvote/internal/decision"
	"github.com/roach88/subvote/internal/model"
	"github.com/roach88/subvote/internal/notify"
	"github.com/roach88/subvote/internal/review"
	"github.com/roach88/subvote/internal/store"
)

// Client is the subset of the Bot API the loop needs.
type Client interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]notify.Update, error)
	SendText(ctx context.Context, chatID, text string) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// Replies sent to chat users.
const (
	WelcomeText     = "Welcome to the subvote DNS bot."
	HelpText        = "Admins: use /bind <token> in a private chat with me to link your Telegram account."
	BindPrivateText = "For your account's safety, send /bind to me in a private chat."
	BindUsageText   = "Usage: /bind <token>"
	BindInvalidText = "Invalid or expired token. Ask an operator for a new one."
	BindFailedText  = "Binding failed. Please contact an operator."

	VoteProcessedText    = "This application has already been processed or does not exist."
	VoteClosedText       = "Voting on this application has closed."
	VoteUnauthorizedText = "You are not an admin or have not bound your Telegram account."
	VoteFailedText       = "Something went wrong while recording your vote."
	VoteUnknownText      = "Unknown action."

	ReportHandledText  = "This report has already been handled or does not exist."
	ReportIgnoredText  = "Report ignored."
	ReportNoRecordText = "No DNS record exists under the reported name; nothing to suspend."
	ReportFailedText   = "Something went wrong while handling the report."
)

// Bot dispatches Telegram updates.
type Bot struct {
	client      Client
	engine      *decision.Engine
	reports     *abuse.Service
	store       *store.Store
	clock       decision.Clock
	logger      *slog.Logger
	pollTimeout time.Duration
	retryDelay  time.Duration
}

// Option configures a Bot.
type Option func(*Bot)

// WithClock replaces the wall clock used for bind token expiry.
func WithClock(c decision.Clock) Option {
	return func(b *Bot) { b.clock = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) { b.logger = l }
}

// WithReports enables the suspend and ignore actions on abuse report messages.
func WithReports(r *abuse.Service) Option {
	return func(b *Bot) { b.reports = r }
}

// WithPollTimeout sets the getUpdates long-poll timeout. Defaults to 30s.
func WithPollTimeout(d time.Duration) Option {
	return func(b *Bot) { b.pollTimeout = d }
}

// WithRetryDelay sets the pause after a failed poll. Defaults to 5s.
func WithRetryDelay(d time.Duration) Option {
	return func(b *Bot) { b.retryDelay = d }
}

// New creates a Bot.
func New(client Client, engine *decision.Engine, s *store.Store, opts ...Option) *Bot {
	b := &Bot{
		client:      client,
		engine:      engine,
		store:       s,
		clock:       decision.SystemClock{},
		logger:      slog.Default(),
		pollTimeout: 30 * time.Second,
		retryDelay:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run polls for updates and handles them one at a time until ctx is done.
// It returns nil when ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	var offset int64
	b.logger.Info("telegram update loop started", "poll_timeout", b.pollTimeout)

	for {
		updates, err := b.client.GetUpdates(ctx, offset, b.pollTimeout)
		if ctx.Err() != nil {
			b.logger.Info("telegram update loop stopped")
			return nil
		}
		if err != nil {
			b.logger.Warn("getUpdates failed", "error", err, "retry_in", b.retryDelay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(b.retryDelay):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.HandleUpdate(ctx, u)
		}
	}
}

// HandleUpdate processes one update. Failures are answered to the user and
// logged; nothing is returned.
func (b *Bot) HandleUpdate(ctx context.Context, u notify.Update) {
	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, *u.CallbackQuery)
	case u.Message != nil && u.Message.From != nil:
		b.handleMessage(ctx, *u.Message)
	}
}

func (b *Bot) handleCallback(ctx context.Context, q notify.CallbackQuery) {
	logger := b.logger.With("callback_id", q.ID, "from", q.From.IDString())

	if review.IsReportAction(q.Data) && b.reports != nil {
		b.handleReportAction(ctx, logger, q)
		return
	}
	if !review.IsVote(q.Data) {
		b.answer(ctx, logger, q.ID, VoteUnknownText, true)
		return
	}
	kind, appID, err := review.DecodeVote(q.Data)
	if err != nil {
		logger.Warn("malformed vote callback", "data", q.Data, "error", err)
		b.answer(ctx, logger, q.ID, VoteUnknownText, true)
		return
	}

	req := decision.VoteRequest{
		ApplicationID: appID,
		VoterID:       q.From.IDString(),
		Kind:          kind,
	}
	if q.Message != nil {
		req.MessageID = strconv.FormatInt(q.Message.MessageID, 10)
	}

	result, err := b.engine.CastVote(ctx, req)
	if err != nil {
		text, alert := voteErrorReply(err)
		if !decision.IsVoteError(err, "") {
			logger.Error("vote failed", "application_id", appID, "error", err)
		}
		b.answer(ctx, logger, q.ID, text, alert)
		return
	}
	b.answer(ctx, logger, q.ID, voteReply(kind, result), false)
}

func (b *Bot) handleReportAction(ctx context.Context, logger *slog.Logger, q notify.CallbackQuery) {
	action, reportID, err := review.DecodeReportAction(q.Data)
	if err != nil {
		logger.Warn("malformed report callback", "data", q.Data, "error", err)
		b.answer(ctx, logger, q.ID, VoteUnknownText, true)
		return
	}
	logger = logger.With("report_id", reportID, "action", action)

	admin, err := b.store.FindAdminByChatID(ctx, q.From.IDString())
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Error("admin lookup failed", "error", err)
		}
		b.answer(ctx, logger, q.ID, VoteUnauthorizedText, true)
		return
	}

	var reply string
	switch action {
	case review.ReportSuspend:
		var s abuse.Suspension
		s, err = b.reports.Suspend(ctx, reportID)
		if err == nil {
			reply = fmt.Sprintf("%s suspended.", s.Report.Name)
		}
	case review.ReportIgnore:
		_, err = b.reports.Ignore(ctx, reportID)
		reply = ReportIgnoredText
	}

	switch {
	case err == nil:
		logger.Info("report handled via chat", "admin", admin.Username)
		b.answer(ctx, logger, q.ID, reply, false)
	case errors.Is(err, abuse.ErrReportClosed), errors.Is(err, store.ErrNotFound):
		b.answer(ctx, logger, q.ID, ReportHandledText, true)
	case errors.Is(err, abuse.ErrNoRecord):
		b.answer(ctx, logger, q.ID, ReportNoRecordText, true)
	default:
		logger.Error("report action failed", "error", err)
		b.answer(ctx, logger, q.ID, ReportFailedText, true)
	}
}

func voteErrorReply(err error) (string, bool) {
	var ve *decision.VoteError
	if !errors.As(err, &ve) {
		return VoteFailedText, true
	}
	switch ve.Code {
	case decision.ErrCodeVoteWindowClosed:
		return VoteClosedText, true
	case decision.ErrCodeUnauthorized:
		return VoteUnauthorizedText, true
	default:
		return VoteProcessedText, true
	}
}

func voteReply(kind model.VoteKind, r decision.VoteResult) string {
	switch r.Outcome {
	case model.OutcomeApproved:
		return "Application fast-tracked to approval."
	case model.OutcomeRejected:
		return "Application fast-tracked to rejection."
	}
	return fmt.Sprintf("You voted %s (%s).", kind, r.Tally)
}

func (b *Bot) answer(ctx context.Context, logger *slog.Logger, callbackID, text string, alert bool) {
	if err := b.client.AnswerCallback(ctx, callbackID, text, alert); err != nil {
		logger.Warn("answerCallbackQuery failed", "error", err)
	}
}

func (b *Bot) handleMessage(ctx context.Context, m notify.Message) {
	cmd, arg := parseCommand(m.Text)
	chatID := m.Chat.IDString()

	var reply string
	switch cmd {
	case "":
		return
	case "/start":
		reply = WelcomeText
	case "/help":
		reply = HelpText
	case "/bind":
		reply = b.bind(ctx, m, arg)
	default:
		return
	}

	if err := b.client.SendText(ctx, chatID, reply); err != nil {
		b.logger.Warn("reply failed", "chat_id", chatID, "command", cmd, "error", err)
	}
}

func (b *Bot) bind(ctx context.Context, m notify.Message, token string) string {
	if m.Chat.Type != "private" {
		return BindPrivateText
	}
	if token == "" {
		return BindUsageText
	}

	chatUserID := m.From.IDString()
	u, err := b.store.RedeemBindToken(ctx, token, chatUserID, b.clock.Now())
	if errors.Is(err, store.ErrNotFound) {
		return BindInvalidText
	}
	if err != nil {
		b.logger.Error("bind failed", "chat_user_id", chatUserID, "error", err)
		return BindFailedText
	}

	b.logger.Info("telegram account bound", "user_id", u.ID, "username", u.Username, "chat_user_id", chatUserID)
	return fmt.Sprintf("Done! Your Telegram account is now bound to %s.", u.Username)
}

// parseCommand splits "/cmd@botname arg" into "/cmd" and "arg".
// Text that is not a command yields an empty cmd.
func parseCommand(text string) (cmd, arg string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	cmd, arg, _ = strings.Cut(text, " ")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}
