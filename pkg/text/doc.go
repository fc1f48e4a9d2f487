/*
Package text implements pattern matching, substitution and diff rendering
for ewsub.

	            +-------------+
	            |   Pattern   |
	            | (Compiled)  |
	            +------+------+
	                   |
	      +-----------+-----------+
	      |                       |
	+-----+-----+           +----+----+
	|   Plain   |           |  Regexp |
	| Substring |           | Pattern |
	+-----------+           +---------+

🎯 Purpose:
- Compiles the search expression once, up front
- Decides whether a cell matches
- Produces the substituted cell value
- Renders marked removed/inserted spans for previews

🔄 Flow:
1. Compile builds a plain or regexp Pattern from the CLI arguments
2. The engine asks Matches for every text cell
3. Matching cells are rewritten with Substitute
4. In dry-run mode Diff renders the change as aligned spans

⚡ Key Responsibilities:
- One case-folding rule shared by match, substitute and diff
- Group back-reference expansion in regex replacements
- Offset bookkeeping so diff spans reconstruct their inputs exactly

🤝 Interfaces:
- Pattern: match/substitute/diff for one compiled expression
- Rendering: structured spans, styled by pkg/render

📝 Design Philosophy:
The rest of the program never inspects the search mode. Matching,
substitution and diff logic live together on each Pattern implementation so
they can never disagree about what constitutes a match.
*/
package text
