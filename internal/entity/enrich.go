package entity

import (
	"context"
	"log/slog"

	"github.com/sydlexius/lineup/internal/image"
)

func needsImage(current string) bool {
	return image.IsLowQualityURL(current)
}

// imageCandidates lists source images in preference order: the page's rich
// preview, a high-resolution variant of the hinted avatar, a high-resolution
// variant of the stored image, the raw avatar. When an image is already
// stored, low-quality candidates are dropped since they cannot improve it.
func (r *Resolver) imageCandidates(ctx context.Context, e *Entity, hints Hints) []string {
	var raw []string
	if r.previews != nil && hints.PageURL != "" {
		pctx, cancel := context.WithTimeout(ctx, r.timeout)
		preview, err := r.previews.PreviewImage(pctx, hints.PageURL)
		cancel()
		if err != nil {
			r.logger.Debug("preview lookup failed", slog.String("url", hints.PageURL), slog.String("error", err.Error()))
		}
		raw = append(raw, preview)
	}
	raw = append(raw, image.HighResVariant(hints.AvatarURL), image.HighResVariant(e.ImageURL), hints.AvatarURL)

	replacing := e.ImageURL != ""
	seen := map[string]bool{"": true, e.ImageURL: true}
	var out []string
	for _, c := range raw {
		if seen[c] {
			continue
		}
		seen[c] = true
		if replacing && image.IsLowQualityURL(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// enrichImage tries each candidate through the image host and stores the
// first hosted URL. If hosting fails for all of them, the first candidate's
// source URL is stored instead.
func (r *Resolver) enrichImage(ctx context.Context, e *Entity, hints Hints) {
	candidates := r.imageCandidates(ctx, e, hints)
	if len(candidates) == 0 {
		return
	}

	chosen := ""
	if r.images != nil {
		for _, c := range candidates {
			hctx, cancel := context.WithTimeout(ctx, r.timeout)
			hosted, err := r.images.Host(hctx, c, string(e.Kind), e.ID)
			cancel()
			if err != nil {
				r.logger.Debug("hosting image failed",
					slog.String("kind", string(e.Kind)),
					slog.String("id", e.ID),
					slog.String("source", c),
					slog.String("error", err.Error()))
				continue
			}
			chosen = hosted
			break
		}
	}
	if chosen == "" {
		chosen = candidates[0]
	}

	if err := r.store.UpdateImage(ctx, e.Kind, e.ID, chosen); err != nil {
		r.logger.Warn("storing image failed",
			slog.String("kind", string(e.Kind)),
			slog.String("id", e.ID),
			slog.String("error", err.Error()))
		return
	}
	e.ImageURL = chosen
}
