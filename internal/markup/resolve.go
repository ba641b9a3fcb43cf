package markup

import "github.com/itchan-dev/crosspost/shared/domain"

// ResolveTags merges default and site tags. Sites extend the defaults unless
// they set Extend to false. Order is defaults first, then site tags; nothing
// is de-duplicated.
func ResolveTags(defaults, site domain.TagData) []string {
	if site.Extend != nil && !*site.Extend {
		return append([]string{}, site.Value...)
	}
	tags := make([]string, 0, len(defaults.Value)+len(site.Value))
	tags = append(tags, defaults.Value...)
	tags = append(tags, site.Value...)
	return tags
}

// ResolveDescription picks the site description only when it explicitly
// overwrites the default.
func ResolveDescription(defaults, site domain.DescriptionData) string {
	if site.Overwrite {
		return site.Value
	}
	return defaults.Value
}
