// Package multimap は1つのキーが複数の値を持てる順序付きコンテナを提供する。
//
// HTTPリクエストのクエリパラメータのように「キーは複数値を持ち得るが、
// 呼び出し側は通常最後の1つだけ欲しい」形のデータを表現する。
// Getは常にそのキーの最後に挿入された値を返し、GetAllは挿入順の全値を返す。
// 素朴な添字アクセスを持たない明示的なメソッドAPIにすることで、
// 「lookupすると最後の値が返る」挙動が暗黙に紛れ込むことを避けている。
//
// Mapのインスタンスはリクエストスコープでの利用を想定しており、
// 複数goroutineからの同時利用に対するロックは行わない。
package multimap

import (
	"iter"
	"net/url"
	"slices"
)

// Map はキーKから値Vの順序付きシーケンスへのマッピング。
// 1つのキーに重複を含む複数の値を挿入順で保持する。
// キーの列挙順は最初に登場した順で固定される。
// ゼロ値は使用できない。Newで生成すること。
type Map[K comparable, V any] struct {
	lists map[K][]V
	keys  []K // キーの初出順
}

// New は空のMapを生成する。
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		lists: make(map[K][]V),
	}
}

// FromValues はurl.ValuesからMapを構築する。
// url.Valuesのマップ順序は不定のため、キーはソートして登録する。
// 同一キー内の値の順序はurl.Valuesの保持順をそのまま引き継ぐ。
func FromValues(values url.Values) *Map[string, string] {
	m := New[string, string]()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		m.SetAll(k, values[k])
	}
	return m
}

// Get はキーの最後の値を返す。
// キーが存在しない、またはシーケンスが空の場合はVのゼロ値を返す。
// エラーにはならない。
func (m *Map[K, V]) Get(key K) V {
	var zero V
	return m.GetDefault(key, zero)
}

// GetDefault はキーの最後の値を返す。
// キーが存在しない、またはシーケンスが空の場合はdefを返す。
func (m *Map[K, V]) GetDefault(key K, def V) V {
	list := m.lists[key]
	if len(list) == 0 {
		return def
	}
	return list[len(list)-1]
}

// Lookup はキーの最後の値と、値が存在したかどうかを返す。
// Get系と異なり「値がない」ことを呼び出し側が明示的に区別したい場合に使う。
func (m *Map[K, V]) Lookup(key K) (V, bool) {
	list := m.lists[key]
	if len(list) == 0 {
		var zero V
		return zero, false
	}
	return list[len(list)-1], true
}

// GetAll はキーの全値を挿入順で返す。
// キーが存在しない場合は空のシーケンスを返す。エラーにはならない。
// 返されるスライスはコピーであり、呼び出し側が変更しても内部状態は変わらない。
func (m *Map[K, V]) GetAll(key K) []V {
	return slices.Clone(m.lists[key])
}

// Set はキーのシーケンスを値1つだけのシーケンス[value]で置き換える。
// 既存の値は破棄される（追記ではない）。
func (m *Map[K, V]) Set(key K, value V) {
	m.register(key)
	m.lists[key] = []V{value}
}

// SetAll はキーのシーケンスをvaluesの内容で丸ごと置き換える。
// 空のスライスを渡した場合もキー自体は登録された状態になる
// （GetAllは空を返し、Getはゼロ値を返す）。
func (m *Map[K, V]) SetAll(key K, values []V) {
	m.register(key)
	m.lists[key] = slices.Clone(values)
}

// SetDefault はキーが未登録の場合のみ[def]を設定し、現在のGet(key)を返す。
func (m *Map[K, V]) SetDefault(key K, def V) V {
	if _, ok := m.lists[key]; !ok {
		m.Set(key, def)
	}
	return m.Get(key)
}

// SetAllDefault はキーが未登録の場合のみdefsを設定し、現在のGetAll(key)を返す。
func (m *Map[K, V]) SetAllDefault(key K, defs []V) []V {
	if _, ok := m.lists[key]; !ok {
		m.SetAll(key, defs)
	}
	return m.GetAll(key)
}

// Append はキーのシーケンス末尾にvalueを追加する。
// キーが未登録の場合は空のシーケンスを登録してから追加する。
// 既存の値は保持される。
func (m *Map[K, V]) Append(key K, value V) {
	m.register(key)
	m.lists[key] = append(m.lists[key], value)
}

// Len は登録されているキーの数を返す。
func (m *Map[K, V]) Len() int {
	return len(m.keys)
}

// Keys は登録されているキーを初出順で返す。
func (m *Map[K, V]) Keys() []K {
	return slices.Clone(m.keys)
}

// Items はキーごとに1ペアを初出順でイテレートする。
// 値はGetと同じ「最後の値」。シーケンスが空のキーはゼロ値になる。
func (m *Map[K, V]) Items() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, k := range m.keys {
			if !yield(k, m.Get(k)) {
				return
			}
		}
	}
}

// AllItems はキーごとに全値シーケンスを初出順でイテレートする。
// 渡されるスライスは内部状態のコピー。
func (m *Map[K, V]) AllItems() iter.Seq2[K, []V] {
	return func(yield func(K, []V) bool) {
		for _, k := range m.keys {
			if !yield(k, m.GetAll(k)) {
				return
			}
		}
	}
}

// Merge はotherの各キーのシーケンスを自身の対応するシーケンスの末尾に連結する。
// 置き換えではなく連結。自身に無いキーは新規登録される。
func (m *Map[K, V]) Merge(other *Map[K, V]) {
	for _, k := range other.keys {
		m.register(k)
		m.lists[k] = append(m.lists[k], other.lists[k]...)
	}
}

// MergeMap は通常のmapの各値を対応するキーのシーケンス末尾に1つずつ追加する。
// mapの列挙順は不定のため、新規キーの登録順も不定になる点に注意。
func (m *Map[K, V]) MergeMap(other map[K]V) {
	for k, v := range other {
		m.Append(k, v)
	}
}

// Clone はMapのディープコピーを返す。
// 各値シーケンスは独立してコピーされるため、クローン側のシーケンスを
// 変更しても元のMapには影響しない（値自体のコピーは浅い）。
func (m *Map[K, V]) Clone() *Map[K, V] {
	c := &Map[K, V]{
		lists: make(map[K][]V, len(m.lists)),
		keys:  slices.Clone(m.keys),
	}
	for k, list := range m.lists {
		c.lists[k] = slices.Clone(list)
	}
	return c
}

// register はキーを初出順リストに未登録なら追加する。
func (m *Map[K, V]) register(key K) {
	if _, ok := m.lists[key]; !ok {
		m.keys = append(m.keys, key)
		m.lists[key] = nil
	}
}
