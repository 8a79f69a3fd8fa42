// Package downstream collects the buckets of a merge fragment's sources and
// hands their merge to a consumer exactly once.
//
// A Context expects one bucket per source slot. Sources may deliver their
// bucket in several pages; a slot counts as filled once its last page
// arrived. When every slot is filled the consumer receives the merged
// buckets in slot order. The first failure reported by any source wins and
// is delivered to the consumer instead.
package downstream
