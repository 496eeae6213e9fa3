package whail

import (
	"context"
	"io"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/jsonmessage"
)

// ImagePull pulls ref and drains the progress stream into out (nil discards
// it). Errors reported inside the stream, such as auth failures or missing
// manifests, are returned as pull errors.
func (e *Engine) ImagePull(ctx context.Context, ref string, options image.PullOptions, out io.Writer) error {
	rc, err := e.APIClient.ImagePull(ctx, ref, options)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return ErrImageNotFound(ref, err)
		}
		return ErrImagePullFailed(ref, err)
	}
	defer rc.Close()

	if out == nil {
		out = io.Discard
	}
	if err := jsonmessage.DisplayJSONMessagesStream(rc, out, 0, false, nil); err != nil {
		return ErrImagePullFailed(ref, err)
	}
	return nil
}
