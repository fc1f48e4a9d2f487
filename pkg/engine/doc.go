/*
Package engine drives the two passes of a replacement run over a database.

	            +-------------+
	            |   Engine    |
	            | (Two-pass)  |
	            +------+------+
	                   |
	      +-----------+-----------+
	      |                       |
	+-----+-----+           +----+----+
	|   Scan    |           |  Apply  |
	| (Report)  |           | (Write) |
	+-----------+           +---------+

🎯 Purpose:
- Discovers which tables and columns contain matches
- Rewrites (or previews) every matching cell
- Commits per table through the Store surface

🔄 Flow:
1. Scan visits every text cell of every table and builds a MatchReport
2. Apply re-reads the flagged columns with the same Pattern
3. Each matching cell is substituted, then staged or rendered as a diff
4. A table's staged updates commit as one unit

⚡ Key Responsibilities:
- One Matcher predicate shared by both passes
- Progress reporting against the report total
- Per-table commit/discard lifecycle
- Error context (table, column, rowid) on every failure

🤝 Interfaces:
- Store: schema listing, row streaming, staged writes
- ApplyOptions: dry-run switch, diff and progress callbacks

📝 Design Philosophy:
The engine is deliberately single-threaded: it is the sole writer for the
duration of a run, and sequential passes keep the progress numbers honest.
Anything user-visible (colors, prompts, archives) lives outside.
*/
package engine
