package aws

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// pager is the subset of the generated EC2 paginators that collectIDs needs.
type pager[Out any] interface {
	HasMorePages() bool
	NextPage(ctx context.Context, optFns ...func(*ec2.Options)) (Out, error)
}

// collectIDs drains p and returns the distinct ids extracted from every
// page, sorted. An error on any page discards what was collected.
func collectIDs[Out any](ctx context.Context, p pager[Out], extract func(Out) []string) ([]string, error) {
	seen := make(map[string]struct{})
	for p.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range extract(page) {
			if id != "" {
				seen[id] = struct{}{}
			}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
