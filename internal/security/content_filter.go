package security

import (
	"regexp"
	"strings"

	"portfolio/backend/internal/domain"
)

// 命中规则名，用作日志字段和指标标签
const (
	RuleMarkup   = "markup"
	RuleKeywords = "keywords"
	RuleLinks    = "links"
	RuleAddress  = "address"
)

// Flag 一条命中记录
type Flag struct {
	Rule   string
	Detail string
}

// ContentFilter 联系表单内容过滤器
//
// 只做标记，不拒绝提交：标记用于日志和指标，转义由 domain.Sanitize 负责。
type ContentFilter struct {
	// 可疑标记模式
	markupPatterns []*regexp.Regexp

	// 垃圾邮件关键词
	spamKeywords []string
	keywordLimit int

	linkPattern *regexp.Regexp
	linkLimit   int
}

// NewContentFilter 创建内容过滤器
func NewContentFilter() *ContentFilter {
	return &ContentFilter{
		markupPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)<script[^>]*>`),
			regexp.MustCompile(`(?i)javascript:`),
			regexp.MustCompile(`(?i)on(load|error|click)\s*=`),
			regexp.MustCompile(`(?i)<iframe[^>]*>`),
			regexp.MustCompile(`(?i)<object[^>]*>`),
			regexp.MustCompile(`(?i)<embed[^>]*>`),
		},
		spamKeywords: []string{
			"viagra", "casino", "lottery", "winner", "congratulations",
			"free money", "click here", "limited time", "act now",
			"guaranteed", "no risk", "earn money", "work from home",
			"seo services", "backlinks", "crypto",
		},
		keywordLimit: 3,
		linkPattern:  regexp.MustCompile(`(?i)https?://`),
		linkLimit:    3,
	}
}

// Inspect 检查原始（未转义）提交，返回全部命中
func (cf *ContentFilter) Inspect(sub domain.Submission) []Flag {
	var flags []Flag

	all := sub.Name + "\n" + sub.Email + "\n" + sub.Message
	if pattern := cf.matchMarkup(all); pattern != "" {
		flags = append(flags, Flag{Rule: RuleMarkup, Detail: pattern})
	}

	if hits := cf.countKeywords(sub.Message); len(hits) >= cf.keywordLimit {
		flags = append(flags, Flag{Rule: RuleKeywords, Detail: strings.Join(hits, ",")})
	}

	if links := len(cf.linkPattern.FindAllStringIndex(sub.Message, -1)); links > cf.linkLimit {
		flags = append(flags, Flag{Rule: RuleLinks, Detail: "too many links"})
	}

	if err := domain.CheckReplyTo(sub.Email); err != nil {
		flags = append(flags, Flag{Rule: RuleAddress, Detail: err.Error()})
	}

	return flags
}

func (cf *ContentFilter) matchMarkup(content string) string {
	for _, pattern := range cf.markupPatterns {
		if pattern.MatchString(content) {
			return pattern.String()
		}
	}
	return ""
}

func (cf *ContentFilter) countKeywords(content string) []string {
	contentLower := strings.ToLower(content)

	var hits []string
	for _, keyword := range cf.spamKeywords {
		if strings.Contains(contentLower, keyword) {
			hits = append(hits, keyword)
		}
	}
	return hits
}
