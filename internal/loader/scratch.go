package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dataload/internal/fetcher"
	"github.com/sells-group/dataload/internal/model"
)

// withScratch runs fn in a fresh directory under the scratch root and
// removes the directory afterwards, whatever fn returns.
func (l *Loader) withScratch(ctx context.Context, fn func(dir string) (model.Dataset, error)) (model.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	root := l.scratch
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, eris.Wrap(err, "loader: create scratch root")
	}
	dir := filepath.Join(root, fmt.Sprintf("dataload-%d-%s", os.Getpid(), uuid.NewString()))
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, eris.Wrap(err, "loader: create scratch dir")
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			zap.L().Warn("loader: remove scratch dir", zap.String("dir", dir), zap.Error(err))
		}
	}()

	return fn(dir)
}

// extractAndLoad extracts the whole archive so sidecar files (.dbf, .prj)
// sit next to the inner path, then loads the inner path from disk.
func (l *Loader) extractAndLoad(ctx context.Context, zr *zip.Reader, res Resource) (model.Dataset, error) {
	return l.withScratch(ctx, func(dir string) (model.Dataset, error) {
		files, err := fetcher.ExtractZIP(zr, dir)
		if err != nil {
			return nil, err
		}
		zap.L().Debug("loader: extracted archive",
			zap.String("dir", dir),
			zap.Int("files", len(files)),
		)

		p, err := fetcher.ResolveUnder(dir, res.InnerPath)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(p); err != nil {
			return nil, eris.Wrapf(fetcher.ErrMemberNotFound, "loader: %q after extraction", res.InnerPath)
		}
		return l.loadFile(p, res)
	})
}

// spillAndLoad writes a payload that can only be decoded from disk to a
// scratch file named name and loads it.
func (l *Loader) spillAndLoad(ctx context.Context, data []byte, name string, res Resource) (model.Dataset, error) {
	return l.withScratch(ctx, func(dir string) (model.Dataset, error) {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, data, 0o600); err != nil {
			return nil, eris.Wrap(err, "loader: write scratch file")
		}
		return l.loadFile(p, res)
	})
}
