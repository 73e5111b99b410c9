package container

import (
	"context"
	"sync"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/network"
	"github.com/rs/zerolog"

	"github.com/schmitthub/svcharness/internal/docker"
	"github.com/schmitthub/svcharness/internal/logger"
)

// BridgeNetwork is the one network every orchestrated container joins, so
// containers reach each other by alias. It is created at most once per
// BridgeNetwork value; share one value across orchestrators.
type BridgeNetwork struct {
	api    docker.APIClient
	name   string
	driver string
	log    *zerolog.Logger

	once sync.Once
	id   string
	err  error
}

// NewBridgeNetwork returns an unrealised network. Nothing is created until
// Ensure is called.
func NewBridgeNetwork(api docker.APIClient, name, driver string) *BridgeNetwork {
	if driver == "" {
		driver = "bridge"
	}
	return &BridgeNetwork{api: api, name: name, driver: driver}
}

// Name returns the network name.
func (n *BridgeNetwork) Name() string {
	return n.name
}

func (n *BridgeNetwork) logger() *zerolog.Logger {
	if n.log != nil {
		return n.log
	}
	return &logger.Log
}

// Ensure returns the network ID, creating the network on first use. A network
// of the same name left behind by an earlier process is reused. The first
// outcome, success or failure, is returned to every later caller.
func (n *BridgeNetwork) Ensure(ctx context.Context) (string, error) {
	n.once.Do(func() {
		n.id, n.err = n.ensure(ctx)
	})
	return n.id, n.err
}

func (n *BridgeNetwork) ensure(ctx context.Context) (string, error) {
	if info, err := n.api.NetworkInspect(ctx, n.name, network.InspectOptions{}); err == nil {
		n.logger().Debug().Str("network", n.name).Str("id", docker.ShortID(info.ID)).Msg("reusing existing network")
		return info.ID, nil
	} else if !cerrdefs.IsNotFound(err) {
		n.logger().Debug().Err(err).Str("network", n.name).Msg("network inspect failed, attempting create")
	}

	resp, err := n.api.NetworkCreate(ctx, n.name, network.CreateOptions{
		Driver: n.driver,
		Labels: docker.ManagedLabels(),
	})
	if err != nil {
		// Another process may have won the race.
		if cerrdefs.IsConflict(err) {
			if info, ierr := n.api.NetworkInspect(ctx, n.name, network.InspectOptions{}); ierr == nil {
				return info.ID, nil
			}
		}
		return "", docker.ErrNetworkCreateFailed(n.name, err)
	}
	n.logger().Debug().Str("network", n.name).Str("id", docker.ShortID(resp.ID)).Msg("created network")
	return resp.ID, nil
}

// Prune removes unused harness networks. Failures are logged and swallowed.
func (n *BridgeNetwork) Prune(ctx context.Context) {
	Prune(ctx, n.api, n.logger())
}

// Prune removes every unused network carrying the harness label.
func Prune(ctx context.Context, api docker.APIClient, log *zerolog.Logger) {
	if log == nil {
		log = &logger.Log
	}
	report, err := api.NetworksPrune(ctx, docker.ManagedFilter())
	if err != nil {
		log.Warn().Err(err).Msg("network prune failed")
		return
	}
	if len(report.NetworksDeleted) > 0 {
		log.Debug().Strs("networks", report.NetworksDeleted).Msg("pruned networks")
	}
}
