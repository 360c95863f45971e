package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/adapter"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/repository"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/logging"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/metrics"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/worker"
)

var _ BroadcastUseCase = (*broadcastUC)(nil)

type BroadcastUseCase interface {
	// Create records the broadcast and starts delivering it in the background.
	Create(ctx context.Context, text string, createdBy model.TelegramID) (*model.Broadcast, error)
	Get(ctx context.Context, id string) (*model.Broadcast, error)
}

const broadcastPage = 500

type broadcastUC struct {
	users      repository.UserRepository
	broadcasts repository.BroadcastRepository
	bot        adapter.TelegramBotAdapter
	workerPool *worker.Pool
	perSecond  int
	clock      Clock
	log        *zerolog.Logger
}

// NewBroadcastUseCase sends at most perSecond messages per second
// (Telegram allows roughly 30 per second per bot).
func NewBroadcastUseCase(
	users repository.UserRepository,
	broadcasts repository.BroadcastRepository,
	bot adapter.TelegramBotAdapter,
	pool *worker.Pool,
	perSecond int,
	clock Clock,
	logger *zerolog.Logger,
) *broadcastUC {
	if perSecond <= 0 {
		perSecond = 25
	}
	return &broadcastUC{
		users:      users,
		broadcasts: broadcasts,
		bot:        bot,
		workerPool: pool,
		perSecond:  perSecond,
		clock:      orSystem(clock),
		log:        logger,
	}
}

func (uc *broadcastUC) Create(ctx context.Context, text string, createdBy model.TelegramID) (*model.Broadcast, error) {
	defer logging.TraceDuration(uc.log, "BroadcastUC.Create")()

	b, err := model.NewBroadcast(text, createdBy, uc.clock())
	if err != nil {
		return nil, err
	}
	total, err := uc.users.CountUsers(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	b.Total = total
	if err := uc.broadcasts.Save(ctx, repository.NoTX, b); err != nil {
		return nil, err
	}

	snapshot := *b
	// Delivery outlives the admin request that started it.
	go uc.run(context.WithoutCancel(ctx), &snapshot)
	return b, nil
}

func (uc *broadcastUC) Get(ctx context.Context, id string) (*model.Broadcast, error) {
	return uc.broadcasts.FindByID(ctx, repository.NoTX, id)
}

func (uc *broadcastUC) run(ctx context.Context, b *model.Broadcast) {
	log := uc.log.With().Str("broadcast_id", b.ID).Logger()
	log.Info().Int("user_count", b.Total).Msg("starting broadcast")

	b.Status = model.BroadcastStatusSending
	uc.save(ctx, b, &log)

	throttle := time.NewTicker(time.Second / time.Duration(uc.perSecond))
	defer throttle.Stop()

	var sent, failed atomic.Int64
	var wg sync.WaitGroup
	var after model.TelegramID
pages:
	for {
		ids, err := uc.users.ListIDs(ctx, repository.NoTX, after, broadcastPage)
		if err != nil {
			log.Error().Err(err).Msg("failed to page users, stopping broadcast")
			break
		}
		for i, id := range ids {
			<-throttle.C
			wg.Add(1)
			task := uc.sendTask(id.Int64(), b.Text, &wg, &sent, &failed)
			if err := uc.workerPool.SubmitWait(ctx, task); err != nil {
				wg.Done()
				if errors.Is(err, worker.ErrStopped) {
					// Recipients on later pages are not counted.
					failed.Add(int64(len(ids) - i))
					log.Warn().Msg("worker pool stopped, ending broadcast early")
					break pages
				}
				failed.Add(1)
				log.Warn().Err(err).Int64("tg_id", id.Int64()).Msg("failed to submit broadcast task")
			}
		}
		if len(ids) < broadcastPage {
			break
		}
		after = ids[len(ids)-1]
	}
	wg.Wait()

	finished := uc.clock()
	b.Sent, b.Failed = int(sent.Load()), int(failed.Load())
	b.Status = model.BroadcastStatusDone
	b.FinishedAt = &finished
	uc.save(ctx, b, &log)
	log.Info().Int("sent", b.Sent).Int("failed", b.Failed).Msg("broadcast finished")
}

func (uc *broadcastUC) sendTask(chatID int64, text string, wg *sync.WaitGroup, sent, failed *atomic.Int64) worker.Task {
	return func(ctx context.Context) error {
		defer wg.Done()
		if err := uc.bot.SendMessage(ctx, chatID, text); err != nil {
			failed.Add(1)
			metrics.IncBroadcastMessage("failed")
			return err
		}
		sent.Add(1)
		metrics.IncBroadcastMessage("sent")
		return nil
	}
}

func (uc *broadcastUC) save(ctx context.Context, b *model.Broadcast, log *zerolog.Logger) {
	if err := uc.broadcasts.Save(ctx, repository.NoTX, b); err != nil {
		log.Error().Err(err).Msg("failed to persist broadcast progress")
	}
}
