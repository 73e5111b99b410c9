package container

import (
	"context"
	"errors"
	"fmt"

	cerrdefs "github.com/containerd/errdefs"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/rs/zerolog"

	"github.com/schmitthub/svcharness/internal/docker"
	"github.com/schmitthub/svcharness/internal/logger"
)

// RemoveLeaked force-removes every container, running or not, that matches
// filter. It is meant for containers left behind by killed runs; handles
// obtained from an Orchestrator clean up after themselves. It returns the
// number removed and any removal errors joined.
func RemoveLeaked(ctx context.Context, api docker.APIClient, filter filters.Args, log *zerolog.Logger) (int, error) {
	if log == nil {
		log = &logger.Log
	}
	list, err := api.ContainerList(ctx, dockercontainer.ListOptions{All: true, Filters: filter})
	if err != nil {
		return 0, fmt.Errorf("listing leaked containers: %w", err)
	}

	var (
		removed int
		errs    []error
	)
	for _, c := range list {
		err := api.ContainerRemove(ctx, c.ID, dockercontainer.RemoveOptions{Force: true})
		switch {
		case err == nil:
			removed++
			log.Debug().Str("id", docker.ShortID(c.ID)).Strs("names", c.Names).Msg("removed leaked container")
		case cerrdefs.IsNotFound(err):
		default:
			errs = append(errs, fmt.Errorf("remove container %s: %w", docker.ShortID(c.ID), err))
		}
	}
	return removed, errors.Join(errs...)
}
