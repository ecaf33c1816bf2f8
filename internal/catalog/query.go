package catalog

import (
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/doug-martin/goqu/v9/exp"
)

var dialect = goqu.Dialect("mysql")

var bookColumns = []any{
	goqu.I("books.id"),
	goqu.I("books.title"),
	goqu.I("books.isbn"),
	goqu.I("books.publisher"),
	goqu.I("books.published_date"),
	goqu.I("books.image_url"),
	goqu.I("books.stock_count"),
	goqu.I("books.created_at"),
	goqu.I("books.updated_at"),
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// 部分一致（大文字小文字を区別しない）。authors/tags は binary 照合なので LOWER で揃える。
func containsCI(col string, pattern string) exp.BooleanExpression {
	return goqu.L("LOWER(?)", goqu.I(col)).ILike(pattern)
}

func searchFilter(term string) exp.Expression {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"

	byAuthor := dialect.From(goqu.T("book_authors").As("ba")).
		Join(goqu.T("authors").As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("ba.author_id")))).
		Where(containsCI("a.name", pattern)).
		Select(goqu.I("ba.book_id"))
	byTag := dialect.From(goqu.T("taggings").As("tg")).
		Join(goqu.T("tags").As("t"), goqu.On(goqu.I("t.id").Eq(goqu.I("tg.tag_id")))).
		Where(containsCI("t.name", pattern)).
		Select(goqu.I("tg.book_id"))

	// JOIN ではなく IN (subquery) にして重複行を出さない。
	// In(ds) だと括弧が二重になりスカラーサブクエリ扱いになるので L で書く。
	return goqu.Or(
		containsCI("books.title", pattern),
		containsCI("books.isbn", pattern),
		goqu.L("? IN ?", goqu.I("books.id"), byAuthor),
		goqu.L("? IN ?", goqu.I("books.id"), byTag),
	)
}

func sortOrder(s Sort, collation string) []exp.OrderedExpression {
	switch s {
	case SortTitleAsc:
		title := goqu.L("books.title").Asc()
		if collation != "" {
			title = goqu.L("books.title COLLATE " + collation).Asc()
		}
		return []exp.OrderedExpression{title, goqu.I("books.id").Asc()}
	case SortPublishedDesc:
		// 出版日なしは末尾
		return []exp.OrderedExpression{
			goqu.L("books.published_date IS NULL").Asc(),
			goqu.I("books.published_date").Desc(),
			goqu.I("books.created_at").Desc(),
			goqu.I("books.id").Desc(),
		}
	default:
		return []exp.OrderedExpression{goqu.I("books.created_at").Desc(), goqu.I("books.id").Desc()}
	}
}

// buildSearch は一覧取得と件数取得の SQL を組み立てる
func buildSearch(q SearchQuery, collation string) (listSQL string, listArgs []any, countSQL string, countArgs []any, err error) {
	base := dialect.From(goqu.T("books")).Prepared(true)
	if f := searchFilter(q.Term); f != nil {
		base = base.Where(f)
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	list := base.Select(bookColumns...).
		Order(sortOrder(q.Sort, collation)...).
		Limit(uint(q.PerPage)).
		Offset(uint((page - 1) * q.PerPage))

	listSQL, listArgs, err = list.ToSQL()
	if err != nil {
		return "", nil, "", nil, err
	}
	countSQL, countArgs, err = base.Select(goqu.COUNT(goqu.Star())).ToSQL()
	if err != nil {
		return "", nil, "", nil, err
	}
	return listSQL, listArgs, countSQL, countArgs, nil
}
