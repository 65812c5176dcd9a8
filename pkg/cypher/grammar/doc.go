// Package grammar provides the Cypher subset grammar built with participle.
//
// The grammar covers read-only pattern queries:
//
//	MATCH (a:Person {name: 'Alice'})-[r:KNOWS|LIKES]->(b), (c)
//	WHERE a.age > 30 AND NOT b.retired
//	RETURN a.name AS src, b.name, count(*)
//	ORDER BY src DESC
//	SKIP 1 LIMIT 10;
//
// Parse returns the raw grammar tree. The cypher package turns that tree
// into its typed query model and rejects what the grammar accepts but the
// engine does not support.
//
// Expression precedence, lowest first: OR, AND, NOT, a single comparison,
// + and -, * / and %, unary minus, atoms. Relationship patterns are
// forward only; (a)<-[r]-(b) and (a)-[r]-(b) do not parse.
package grammar
